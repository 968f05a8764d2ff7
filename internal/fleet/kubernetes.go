package fleet

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/retry"

	"github.com/OldStager01/predictive-autoscaler/internal/logger"
)

// KubernetesFleet sizes a Deployment through its spec.replicas.
type KubernetesFleet struct {
	client     kubernetes.Interface
	namespace  string
	deployment string
}

type KubernetesConfig struct {
	Namespace  string
	Deployment string
}

func NewKubernetesFleet(client kubernetes.Interface, cfg KubernetesConfig) *KubernetesFleet {
	if cfg.Namespace == "" {
		cfg.Namespace = metav1.NamespaceDefault
	}
	return &KubernetesFleet{
		client:     client,
		namespace:  cfg.Namespace,
		deployment: cfg.Deployment,
	}
}

// NewKubernetesClient uses the kubeconfig at path, or the in-cluster service
// account when path is empty.
func NewKubernetesClient(path string) (kubernetes.Interface, error) {
	var (
		restConfig *rest.Config
		err        error
	)
	if path == "" {
		restConfig, err = rest.InClusterConfig()
	} else {
		restConfig, err = clientcmd.BuildConfigFromFlags("", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load kubernetes config: %w", err)
	}

	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return client, nil
}

// SetDesiredInstanceCount updates spec.replicas, retrying on write conflicts.
// A Deployment already at n is left untouched.
func (f *KubernetesFleet) SetDesiredInstanceCount(ctx context.Context, n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTarget, n)
	}
	replicas := int32(n)

	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		deploy, err := f.client.AppsV1().Deployments(f.namespace).Get(ctx, f.deployment, metav1.GetOptions{})
		if err != nil {
			return err
		}
		if deploy.Spec.Replicas != nil && *deploy.Spec.Replicas == replicas {
			return nil
		}

		deploy.Spec.Replicas = &replicas
		_, err = f.client.AppsV1().Deployments(f.namespace).Update(ctx, deploy, metav1.UpdateOptions{})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: deployment %s/%s: %v", ErrScalingFailed, f.namespace, f.deployment, err)
	}

	logger.WithFleet(f.deployment).Infof("Deployment %s/%s scaled to %d replicas", f.namespace, f.deployment, n)
	return nil
}

func (f *KubernetesFleet) CurrentInstanceCount(ctx context.Context) (int, error) {
	deploy, err := f.client.AppsV1().Deployments(f.namespace).Get(ctx, f.deployment, metav1.GetOptions{})
	if err != nil {
		return 0, fmt.Errorf("%w: deployment %s/%s: %v", ErrFleetUnavailable, f.namespace, f.deployment, err)
	}
	if deploy.Spec.Replicas == nil {
		// the API server defaults an unset replica count to 1
		return 1, nil
	}
	return int(*deploy.Spec.Replicas), nil
}
