package eventlinetest

import (
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
)

// TestResource is a minimal custom resource for exercising the engine.
type TestResource struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   TestResourceSpec   `json:"spec,omitempty"`
	Status TestResourceStatus `json:"status,omitempty"`
}

// TestResourceSpec is the desired state of a TestResource.
type TestResourceSpec struct {
	Value string `json:"value,omitempty"`
}

// TestResourceStatus is the observed state of a TestResource.
type TestResourceStatus struct {
	State string `json:"state,omitempty"`
}

// DeepCopy returns a full copy of the resource.
func (r *TestResource) DeepCopy() *TestResource {
	if r == nil {
		return nil
	}
	out := &TestResource{
		TypeMeta: r.TypeMeta,
		Spec:     r.Spec,
		Status:   r.Status,
	}
	r.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	return out
}

// DeepCopyObject implements runtime.Object.
func (r *TestResource) DeepCopyObject() runtime.Object {
	return r.DeepCopy()
}

// NewTestResource builds a TestResource with sensible metadata: uid
// "uid-<name>", generation 1, resourceVersion "1", no finalizers.
func NewTestResource(name string) *TestResource {
	return &TestResource{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "test.eventline.io/v1",
			Kind:       "TestResource",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:            name,
			Namespace:       "default",
			UID:             types.UID(fmt.Sprintf("uid-%s", name)),
			Generation:      1,
			ResourceVersion: "1",
		},
	}
}

// WithGeneration sets the generation and returns the resource.
func (r *TestResource) WithGeneration(gen int64) *TestResource {
	r.Generation = gen
	return r
}

// WithResourceVersion sets the resourceVersion and returns the resource.
func (r *TestResource) WithResourceVersion(rv string) *TestResource {
	r.ResourceVersion = rv
	return r
}

// WithFinalizer appends a finalizer and returns the resource.
func (r *TestResource) WithFinalizer(finalizer string) *TestResource {
	r.Finalizers = append(r.Finalizers, finalizer)
	return r
}

// MarkedForDeletion sets the deletion timestamp and returns the resource.
func (r *TestResource) MarkedForDeletion() *TestResource {
	now := metav1.Now()
	r.DeletionTimestamp = &now
	return r
}
