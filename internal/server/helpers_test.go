package server

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shengyanli1982/throttlegate/internal/config"
	"github.com/shengyanli1982/toolkit/pkg/httptool"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

const testConfigTemplate = `
gateway:
  name: test-gateway
  upstream:
    url: "%s"
store:
  type: memory
  keyPrefix: "test:"
limiter:
  profiles:
    - name: tight
      requestsPerMinute: 2
      bucketSize: 100
      refillRatePerSecond: 10
  routes:
    - prefix: /limited
      profile: tight
  load:
    type: %s
identity:
  trustHeaders: true
`

// newTestRuntime 基于内存存储装配运行时
func newTestRuntime(t *testing.T, upstreamURL, loadType string) *Runtime {
	t.Helper()

	manager, err := config.NewManager()
	require.NoError(t, err)
	require.NoError(t, manager.Load([]byte(fmt.Sprintf(testConfigTemplate, upstreamURL, loadType))))

	logger := klog.NewKlogr()
	rt, err := NewRuntime(manager.GetConfig(), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

// newGatewayEngine 将网关服务注册到测试用 gin 引擎
func newGatewayEngine(t *testing.T, rt *Runtime) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := klog.NewKlogr()
	svc, err := NewGatewayService(&rt.Config.Gateway, rt, &logger)
	require.NoError(t, err)
	svc.Run()
	t.Cleanup(svc.Stop)

	engine := gin.New()
	svc.RegisterGroup(&engine.RouterGroup)
	return engine
}

// newAdminEngine 将管理服务注册到测试用 gin 引擎
func newAdminEngine(t *testing.T, rt *Runtime) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := klog.NewKlogr()
	svc := NewAdminService(rt, &logger)

	engine := gin.New()
	svc.RegisterGroup(&engine.RouterGroup)
	return engine
}

// decodeEnvelope 解析统一响应结构，Data 解析为对象
func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) (int64, map[string]interface{}) {
	t.Helper()

	var envelope httptool.BaseHttpResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))

	data, _ := envelope.Data.(map[string]interface{})
	return envelope.Code, data
}
