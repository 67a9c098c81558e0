package source

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	k8sfake "k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/sheralamHF/log-explorer/internal/models"
)

func testPod(name string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "default",
			Labels:    map[string]string{"app": "payment-service"},
		},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{Name: "main"}},
		},
	}
}

func testFilter() models.QueryFilter {
	return models.QueryFilter{
		AppName:   "payment-service",
		Source:    models.SourceKubernetes,
		TimeRange: time.Hour,
	}
}

func TestKubernetesFetch(t *testing.T) {
	clientset := k8sfake.NewSimpleClientset(testPod("payment-0"), testPod("payment-1"))
	k := NewKubernetesWithClient(clientset, KubernetesOptions{Namespace: "default"}, zap.NewNop())
	k.readLogs = func(ctx context.Context, namespace, pod, container string, sinceSeconds int64) (string, error) {
		if sinceSeconds != 3600 {
			t.Errorf("sinceSeconds = %d, want 3600", sinceSeconds)
		}
		return fmt.Sprintf("line one from %s\nline two from %s\n", pod, pod), nil
	}

	res, err := k.Fetch(context.Background(), testFilter())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Records) != 4 {
		t.Fatalf("got %d records, want 4", len(res.Records))
	}
	if res.Partial() {
		t.Errorf("unexpected failures: %v", res.Failures)
	}
	r := res.Records[0]
	if r.Source != models.SourceKubernetes || r.Namespace != "default" || r.Container != "main" {
		t.Errorf("record metadata = %+v", r)
	}
	if r.Pod == "" {
		t.Error("record missing pod name")
	}
}

func TestKubernetesFetch_SkipsBlankLines(t *testing.T) {
	clientset := k8sfake.NewSimpleClientset(testPod("payment-0"))
	k := NewKubernetesWithClient(clientset, KubernetesOptions{Namespace: "default"}, zap.NewNop())
	k.readLogs = func(ctx context.Context, namespace, pod, container string, sinceSeconds int64) (string, error) {
		return "first\n\n   \nsecond\n", nil
	}

	res, err := k.Fetch(context.Background(), testFilter())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Records) != 2 {
		t.Errorf("got %d records, want 2", len(res.Records))
	}
}

func TestKubernetesFetch_PartialShardFailure(t *testing.T) {
	clientset := k8sfake.NewSimpleClientset(testPod("payment-0"), testPod("payment-1"))
	k := NewKubernetesWithClient(clientset, KubernetesOptions{Namespace: "default"}, zap.NewNop())
	k.readLogs = func(ctx context.Context, namespace, pod, container string, sinceSeconds int64) (string, error) {
		if pod == "payment-1" {
			return "", errors.New("container restarting")
		}
		return "healthy line\n", nil
	}

	res, err := k.Fetch(context.Background(), testFilter())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Records) != 1 {
		t.Errorf("got %d records, want 1", len(res.Records))
	}
	if !res.Partial() || len(res.Failures) != 1 {
		t.Fatalf("failures = %v, want one", res.Failures)
	}
	if res.Failures[0].Shard != "default/payment-1" {
		t.Errorf("failed shard = %q", res.Failures[0].Shard)
	}
}

func TestKubernetesFetch_AllPodsFailing(t *testing.T) {
	clientset := k8sfake.NewSimpleClientset(testPod("payment-0"), testPod("payment-1"))
	k := NewKubernetesWithClient(clientset, KubernetesOptions{Namespace: "default"}, zap.NewNop())
	k.readLogs = func(ctx context.Context, namespace, pod, container string, sinceSeconds int64) (string, error) {
		return "", errors.New("connection refused")
	}

	_, err := k.Fetch(context.Background(), testFilter())
	var unavailable *Unavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("error = %v, want Unavailable", err)
	}
	if unavailable.Source != models.SourceKubernetes {
		t.Errorf("source = %q", unavailable.Source)
	}
}

func TestKubernetesFetch_ListFails(t *testing.T) {
	clientset := k8sfake.NewSimpleClientset()
	clientset.PrependReactor("list", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("connection refused")
	})
	k := NewKubernetesWithClient(clientset, KubernetesOptions{Namespace: "default"}, zap.NewNop())

	_, err := k.Fetch(context.Background(), testFilter())
	var unavailable *Unavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("error = %v, want Unavailable", err)
	}
}

func TestKubernetesFetch_NoMatchingPods(t *testing.T) {
	clientset := k8sfake.NewSimpleClientset()
	k := NewKubernetesWithClient(clientset, KubernetesOptions{Namespace: "default"}, zap.NewNop())

	res, err := k.Fetch(context.Background(), testFilter())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Records) != 0 || res.Partial() {
		t.Errorf("unexpected result for empty pod list: %+v", res)
	}
}

func TestKubernetesFetch_MaxPodsCap(t *testing.T) {
	var pods []runtime.Object
	for i := 0; i < 5; i++ {
		pods = append(pods, testPod(fmt.Sprintf("payment-%d", i)))
	}
	clientset := k8sfake.NewSimpleClientset(pods...)
	k := NewKubernetesWithClient(clientset, KubernetesOptions{Namespace: "default", MaxPods: 2}, zap.NewNop())

	var queried atomic.Int32
	k.readLogs = func(ctx context.Context, namespace, pod, container string, sinceSeconds int64) (string, error) {
		queried.Add(1)
		return "line\n", nil
	}

	res, err := k.Fetch(context.Background(), testFilter())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if queried.Load() != 2 || len(res.Records) != 2 {
		t.Errorf("queried %d pods, got %d records, want 2 and 2", queried.Load(), len(res.Records))
	}
}
