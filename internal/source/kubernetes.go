package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/sheralamHF/log-explorer/internal/models"
)

const (
	defaultMaxPods      = 20
	defaultShardTimeout = 30 * time.Second
)

// KubernetesOptions configure the Kubernetes adapter.
type KubernetesOptions struct {
	KubeconfigPath        string // empty = in-cluster, then ~/.kube/config
	Namespace             string // empty = all namespaces
	MaxPods               int
	ShardTimeout          time.Duration
	InsecureSkipTLSVerify bool
}

// Kubernetes fetches container logs for pods matching the application label.
type Kubernetes struct {
	client       kubernetes.Interface
	namespace    string
	maxPods      int
	shardTimeout time.Duration
	log          *zap.Logger

	// readLogs is the per-pod log request; overridable in tests.
	readLogs func(ctx context.Context, namespace, pod, container string, sinceSeconds int64) (string, error)
}

// NewKubernetes builds the adapter from kubeconfig (in-cluster config first,
// then the given path, then ~/.kube/config).
func NewKubernetes(opts KubernetesOptions, log *zap.Logger) (*Kubernetes, error) {
	kubeconfigPath := opts.KubeconfigPath
	var config *rest.Config
	var err error

	if kubeconfigPath == "" {
		// Try in-cluster config first
		config, err = rest.InClusterConfig()
		if err != nil {
			// Fall back to default kubeconfig
			homeDir, _ := os.UserHomeDir()
			if homeDir != "" {
				kubeconfigPath = filepath.Join(homeDir, ".kube", "config")
			}
		}
	}

	if config == nil {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to build config: %w", err)
		}
	}

	if opts.InsecureSkipTLSVerify {
		config.TLSClientConfig = rest.TLSClientConfig{Insecure: true}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return NewKubernetesWithClient(clientset, opts, log), nil
}

// NewKubernetesWithClient builds the adapter around an existing clientset.
func NewKubernetesWithClient(client kubernetes.Interface, opts KubernetesOptions, log *zap.Logger) *Kubernetes {
	maxPods := opts.MaxPods
	if maxPods <= 0 {
		maxPods = defaultMaxPods
	}
	shardTimeout := opts.ShardTimeout
	if shardTimeout <= 0 {
		shardTimeout = defaultShardTimeout
	}
	k := &Kubernetes{
		client:       client,
		namespace:    opts.Namespace,
		maxPods:      maxPods,
		shardTimeout: shardTimeout,
		log:          log,
	}
	k.readLogs = k.readPodLogs
	return k
}

// Fetch lists pods labeled app=<name> and pulls their logs concurrently.
// Each pod is an isolated shard with its own timeout and result buffer;
// buffers are merged after the join so no container is shared across
// goroutines. Unreachable pods land in Failures, they never abort the run.
func (k *Kubernetes) Fetch(ctx context.Context, filter models.QueryFilter) (*FetchResult, error) {
	selector := fmt.Sprintf("app=%s", filter.AppName)

	pods, err := doWithRetryValue(ctx, defaultRetryAttempts, func() (*corev1.PodList, error) {
		return k.client.CoreV1().Pods(k.namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	})
	if err != nil {
		return nil, &Unavailable{Source: models.SourceKubernetes, Err: fmt.Errorf("listing pods with selector %q: %w", selector, err)}
	}

	items := pods.Items
	if len(items) > k.maxPods {
		k.log.Warn("pod count exceeds fan-out cap, truncating",
			zap.Int("pods", len(items)), zap.Int("cap", k.maxPods))
		items = items[:k.maxPods]
	}
	k.log.Info("fetching pod logs", zap.String("selector", selector), zap.Int("pods", len(items)))

	sinceSeconds := int64(filter.TimeRange.Seconds())
	if sinceSeconds < 1 {
		sinceSeconds = 1
	}

	shardRecords := make([][]models.RawRecord, len(items))
	shardErrs := make([]error, len(items))

	g, gctx := errgroup.WithContext(ctx)
	for i, pod := range items {
		g.Go(func() error {
			shardCtx, cancel := context.WithTimeout(gctx, k.shardTimeout)
			defer cancel()

			container := ""
			if len(pod.Spec.Containers) > 0 {
				container = pod.Spec.Containers[0].Name
			}
			raw, err := k.readLogs(shardCtx, pod.Namespace, pod.Name, container, sinceSeconds)
			if err != nil {
				shardErrs[i] = err
				return nil
			}
			var records []models.RawRecord
			for _, line := range strings.Split(raw, "\n") {
				if strings.TrimSpace(line) == "" {
					continue
				}
				records = append(records, models.RawRecord{
					Source:    models.SourceKubernetes,
					Line:      line,
					Pod:       pod.Name,
					Namespace: pod.Namespace,
					Container: container,
				})
			}
			shardRecords[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &FetchResult{}
	for i, pod := range items {
		if shardErrs[i] != nil {
			shard := fmt.Sprintf("%s/%s", pod.Namespace, pod.Name)
			k.log.Warn("skipping unreachable pod", zap.String("pod", shard), zap.Error(shardErrs[i]))
			result.Failures = append(result.Failures, ShardFailure{Shard: shard, Err: shardErrs[i]})
			continue
		}
		result.Records = append(result.Records, shardRecords[i]...)
	}

	// Every pod failing with pods present means the backend is effectively down.
	if len(items) > 0 && len(result.Failures) == len(items) {
		return nil, &Unavailable{Source: models.SourceKubernetes, Err: fmt.Errorf("all %d pods unreachable, first error: %w", len(items), result.Failures[0].Err)}
	}

	return result, nil
}

func (k *Kubernetes) readPodLogs(ctx context.Context, namespace, pod, container string, sinceSeconds int64) (string, error) {
	opts := &corev1.PodLogOptions{
		Container:    container,
		SinceSeconds: &sinceSeconds,
		Timestamps:   true,
	}
	return doWithRetryValue(ctx, defaultRetryAttempts, func() (string, error) {
		req := k.client.CoreV1().Pods(namespace).GetLogs(pod, opts)
		stream, err := req.Stream(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to stream logs: %w", err)
		}
		defer stream.Close()
		data, err := io.ReadAll(stream)
		if err != nil {
			return "", fmt.Errorf("failed to read log stream: %w", err)
		}
		return string(data), nil
	})
}
