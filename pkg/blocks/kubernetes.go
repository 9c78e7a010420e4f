package blocks

import (
	"context"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

const (
	secretPrefix  = "prefect-snowflake-block-"
	secretDataKey = "document"
	labelKey      = "app.kubernetes.io/managed-by"
	labelValue    = "prefect-snowflake"
)

// KubernetesStore persists blocks as Kubernetes Secrets. Blocks carry
// credentials, so Secrets are used rather than ConfigMaps.
type KubernetesStore struct {
	client    kubernetes.Interface
	namespace string
}

// NewKubernetesStore creates a block store backed by the cluster the process
// runs in.
func NewKubernetesStore(namespace string) (*KubernetesStore, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get in-cluster config: %v", err)
	}

	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %v", err)
	}

	return NewKubernetesStoreForClient(client, namespace), nil
}

// NewKubernetesStoreForClient creates a block store using an existing client.
func NewKubernetesStoreForClient(client kubernetes.Interface, namespace string) *KubernetesStore {
	return &KubernetesStore{client: client, namespace: namespace}
}

func secretName(name string) string {
	return secretPrefix + name
}

func (k *KubernetesStore) Save(ctx context.Context, name string, block Block) error {
	doc, err := encode(name, block)
	if err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal block document: %v", err)
	}

	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      secretName(name),
			Namespace: k.namespace,
			Labels:    map[string]string{labelKey: labelValue},
		},
		Data: map[string][]byte{secretDataKey: data},
	}

	secrets := k.client.CoreV1().Secrets(k.namespace)
	_, err = secrets.Update(ctx, secret, metav1.UpdateOptions{})
	if apierrors.IsNotFound(err) {
		_, err = secrets.Create(ctx, secret, metav1.CreateOptions{})
	}
	if err != nil {
		return fmt.Errorf("failed to store block secret: %v", err)
	}
	return nil
}

func (k *KubernetesStore) Get(ctx context.Context, name string, into Block) error {
	secret, err := k.client.CoreV1().Secrets(k.namespace).Get(ctx, secretName(name), metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get block secret: %v", err)
	}

	var doc Document
	if err := json.Unmarshal(secret.Data[secretDataKey], &doc); err != nil {
		return fmt.Errorf("failed to unmarshal block document: %v", err)
	}
	return decode(&doc, into)
}

func (k *KubernetesStore) Delete(ctx context.Context, name string) error {
	err := k.client.CoreV1().Secrets(k.namespace).Delete(ctx, secretName(name), metav1.DeleteOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete block secret: %v", err)
	}
	return nil
}

func (k *KubernetesStore) List(ctx context.Context) ([]Document, error) {
	list, err := k.client.CoreV1().Secrets(k.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelKey + "=" + labelValue,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list block secrets: %v", err)
	}

	var docs []Document
	for _, secret := range list.Items {
		var doc Document
		if err := json.Unmarshal(secret.Data[secretDataKey], &doc); err != nil {
			continue // skip unreadable documents
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
