package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// createTestCollector 创建用于测试的 Prometheus 收集器
func createTestCollector(t *testing.T, namespace, subsystem string) MetricsCollector {
	config := &Config{
		Type:      PrometheusType,
		Enabled:   true,
		Namespace: namespace,
		Subsystem: subsystem,
	}

	registry := prometheus.NewRegistry()
	collector, err := NewPrometheusCollectorWithRegistry(config, registry)
	if err != nil {
		t.Fatalf("Failed to create test collector: %v", err)
	}
	return collector
}

// gatherFamily 按名称后缀查找指标族
func gatherFamily(t *testing.T, collector MetricsCollector, suffix string) *dto.MetricFamily {
	t.Helper()
	metricFamilies, err := collector.GetRegistry().Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if strings.HasSuffix(mf.GetName(), suffix) {
			return mf
		}
	}
	return nil
}

// labelValue 读取指标样本中指定标签的值
func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// TestNewPrometheusCollectorWithRegistry 测试创建使用指定注册器的 Prometheus 收集器
func TestNewPrometheusCollectorWithRegistry(t *testing.T) {
	collector := createTestCollector(t, "test", "")
	if collector == nil {
		t.Fatal("Expected collector to be created, got nil")
	}
	if collector.Name() != PrometheusType {
		t.Errorf("Expected collector name to be 'prometheus', got %s", collector.Name())
	}
}

// TestNewPrometheusCollectorWithRegistry_NilConfig 测试空配置
func TestNewPrometheusCollectorWithRegistry_NilConfig(t *testing.T) {
	_, err := NewPrometheusCollectorWithRegistry(nil, prometheus.NewRegistry())
	if err != ErrNilConfig {
		t.Errorf("Expected ErrNilConfig, got %v", err)
	}
}

// TestNewPrometheusCollectorWithRegistry_NilRegistry 测试空注册器
func TestNewPrometheusCollectorWithRegistry_NilRegistry(t *testing.T) {
	_, err := NewPrometheusCollectorWithRegistry(DefaultConfig(), nil)
	if err == nil {
		t.Error("Expected error for nil registry, got nil")
	}
}

// TestNewPrometheusCollectorWithRegistry_DuplicateRegistration 测试同一注册器重复注册
func TestNewPrometheusCollectorWithRegistry_DuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	if _, err := NewPrometheusCollectorWithRegistry(DefaultConfig(), registry); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := NewPrometheusCollectorWithRegistry(DefaultConfig(), registry); err == nil {
		t.Error("Expected duplicate registration error, got nil")
	}
}

// TestPrometheusCollector_HTTPMetrics 测试网关 HTTP 指标收集
func TestPrometheusCollector_HTTPMetrics(t *testing.T) {
	collector := createTestCollector(t, "test", "")

	collector.RecordResponse("gateway", "POST", "/*path", 429, 2*time.Millisecond, 1024, 128)
	collector.RecordError("gateway", "upstream_error")
	collector.RecordInflight("gateway", 3)

	mf := gatherFamily(t, collector, "_http_requests_total")
	if mf == nil || len(mf.GetMetric()) != 1 {
		t.Fatal("Expected one http_requests_total sample")
	}
	if got := labelValue(mf.GetMetric()[0], "status_code"); got != "429" {
		t.Errorf("Expected status_code label 429, got %s", got)
	}

	if gatherFamily(t, collector, "_http_errors_total") == nil {
		t.Error("Expected to find http_errors_total metric")
	}

	inflight := gatherFamily(t, collector, "_inflight_requests")
	if inflight == nil || inflight.GetMetric()[0].GetGauge().GetValue() != 3 {
		t.Error("Expected inflight_requests gauge to be 3")
	}
}

// TestPrometheusCollector_DecisionMetrics 测试限流决策指标收集
func TestPrometheusCollector_DecisionMetrics(t *testing.T) {
	collector := createTestCollector(t, "test", "")

	collector.RecordDecision("default", "sliding_window", true)
	collector.RecordDecision("default", "sliding_window", true)
	collector.RecordDecision("auth", "token_bucket", false)
	collector.RecordRejection("auth", "token_bucket")
	collector.RecordBypass("role")
	collector.RecordDegraded("open")
	collector.RecordAlert("auth", "token_bucket")
	collector.RecordSystemLoad(0.85)

	decisions := gatherFamily(t, collector, "_rate_limit_decisions_total")
	if decisions == nil || len(decisions.GetMetric()) != 2 {
		t.Fatal("Expected two rate_limit_decisions_total series")
	}
	for _, m := range decisions.GetMetric() {
		switch labelValue(m, "result") {
		case "allowed":
			if m.GetCounter().GetValue() != 2 {
				t.Errorf("Expected 2 allowed decisions, got %v", m.GetCounter().GetValue())
			}
		case "rejected":
			if labelValue(m, "strategy") != "token_bucket" {
				t.Errorf("Expected rejected strategy token_bucket, got %s", labelValue(m, "strategy"))
			}
		default:
			t.Errorf("Unexpected result label %q", labelValue(m, "result"))
		}
	}

	for _, suffix := range []string{
		"_rate_limit_rejections_total",
		"_rate_limit_bypass_total",
		"_rate_limit_degraded_total",
		"_rate_limit_alerts_total",
	} {
		if gatherFamily(t, collector, suffix) == nil {
			t.Errorf("Expected to find %s metric", suffix)
		}
	}

	load := gatherFamily(t, collector, "_system_load")
	if load == nil || load.GetMetric()[0].GetGauge().GetValue() != 0.85 {
		t.Error("Expected system_load gauge to be 0.85")
	}
}

// TestPrometheusCollector_StoreMetrics 测试存储与熔断器指标收集
func TestPrometheusCollector_StoreMetrics(t *testing.T) {
	collector := createTestCollector(t, "test", "")

	collector.RecordStoreOperation("update", "success", time.Millisecond)
	collector.RecordStoreOperation("update", "failure", 100*time.Millisecond)
	collector.RecordBreakerState("store", 2)
	collector.RecordBreakerStateChange("store", "closed", "open")

	ops := gatherFamily(t, collector, "_store_operations_total")
	if ops == nil || len(ops.GetMetric()) != 2 {
		t.Fatal("Expected two store_operations_total series")
	}
	if gatherFamily(t, collector, "_store_operation_duration_seconds") == nil {
		t.Error("Expected to find store_operation_duration_seconds metric")
	}

	state := gatherFamily(t, collector, "_store_breaker_state")
	if state == nil || state.GetMetric()[0].GetGauge().GetValue() != 2 {
		t.Error("Expected store_breaker_state gauge to be 2")
	}
	if gatherFamily(t, collector, "_store_breaker_state_changes_total") == nil {
		t.Error("Expected to find store_breaker_state_changes_total metric")
	}
}

// TestPrometheusCollector_MetricNaming 测试指标命名
func TestPrometheusCollector_MetricNaming(t *testing.T) {
	collector := createTestCollector(t, "throttlegate", "test")

	collector.RecordResponse("gateway", "GET", "/*path", 200, 100*time.Millisecond, 1024, 2048)
	collector.RecordDecision("default", "advanced", true)

	metricFamilies, err := collector.GetRegistry().Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	// 检查指标名称是否包含正确的前缀
	for _, mf := range metricFamilies {
		name := mf.GetName()
		if !strings.HasPrefix(name, "throttlegate_test_") {
			t.Errorf("Expected metric name to start with 'throttlegate_test_', got %s", name)
		}
	}
}

// TestPrometheusCollector_Close 测试关闭收集器
func TestPrometheusCollector_Close(t *testing.T) {
	collector := createTestCollector(t, "test", "")

	if err := collector.Close(); err != nil {
		t.Errorf("Expected no error when closing collector, got %v", err)
	}
}

// TestPrometheusCollector_ConcurrentAccess 测试并发安全
func TestPrometheusCollector_ConcurrentAccess(t *testing.T) {
	collector := createTestCollector(t, "test", "")

	// 并发写入指标
	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(id int) {
			for j := 0; j < 100; j++ {
				collector.RecordResponse("gateway", "POST", "/*path", 200, 100*time.Millisecond, 1024, 2048)
				collector.RecordDecision("default", "advanced", true)
				collector.RecordStoreOperation("get", "success", time.Millisecond)
			}
			done <- true
		}(i)
	}

	// 等待所有 goroutine 完成
	for i := 0; i < 10; i++ {
		<-done
	}

	decisions := gatherFamily(t, collector, "_rate_limit_decisions_total")
	if decisions == nil || decisions.GetMetric()[0].GetCounter().GetValue() != 1000 {
		t.Error("Expected 1000 recorded decisions")
	}
}
