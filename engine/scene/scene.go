// Package scene holds the scene graph: an arena of transform and object records addressed by
// index handles. Transforms form a forest through parent handles; objects pair a model with a
// transform. The package has no rendering logic.
package scene

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/model"
)

// TransformID is the handle of a transform inside the Scene that created it.
type TransformID int

// ObjectID is the handle of an object inside the Scene that created it.
type ObjectID int

// NoParent is the parent handle of a root transform.
const NoParent TransformID = -1

// transformRecord is one entry of the transform arena.
type transformRecord struct {
	parent   TransformID
	local    common.Mat4
	absolute common.Mat4
	dirty    bool
	children []TransformID
}

// objectRecord is one entry of the object arena.
type objectRecord struct {
	model     model.Model
	transform TransformID
}

// Scene owns every Transform and Object of a renderable world.
//
// Handles are dense indices assigned in creation order. A parent must exist before its child is
// created, so a parent's handle is always smaller than its children's and cycles cannot occur.
// Topology only grows; matrix values may change at any time and absolute matrices always reflect
// the latest SetLocalMatrix calls. Passing a handle that this Scene did not create panics.
//
// Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// CreateTransform adds a transform with an identity local matrix.
	//
	// Parameters:
	//   - parent: the parent transform, or NoParent for a root
	//
	// Returns:
	//   - TransformID: the new transform's handle
	CreateTransform(parent TransformID) TransformID

	// CreateMatrixTransform adds a transform with the given local matrix.
	//
	// Parameters:
	//   - parent: the parent transform, or NoParent for a root
	//   - local: the parent-relative matrix
	//
	// Returns:
	//   - TransformID: the new transform's handle
	CreateMatrixTransform(parent TransformID, local common.Mat4) TransformID

	// CreateObject adds a renderable object drawing m at transform t.
	// Panics if m is nil or t is not a transform of this scene.
	//
	// Parameters:
	//   - m: the model to draw
	//   - t: the transform placing it
	//
	// Returns:
	//   - ObjectID: the new object's handle
	CreateObject(m model.Model, t TransformID) ObjectID

	// Transforms returns every transform handle in iteration (creation) order.
	Transforms() []TransformID

	// Objects returns every object handle in iteration (creation) order.
	Objects() []ObjectID

	// TransformCount returns the number of transforms.
	TransformCount() int

	// ObjectCount returns the number of objects.
	ObjectCount() int

	// HasTransform reports whether t is a transform of this scene.
	HasTransform(t TransformID) bool

	// HasObject reports whether o is an object of this scene.
	HasObject(o ObjectID) bool

	// Parent returns the parent of t, or NoParent for a root.
	Parent(t TransformID) TransformID

	// LocalMatrix returns the parent-relative matrix of t.
	LocalMatrix(t TransformID) common.Mat4

	// SetLocalMatrix replaces the parent-relative matrix of t and invalidates the cached absolute
	// matrices of t and all of its descendants.
	//
	// Parameters:
	//   - t: the transform to update
	//   - local: the new parent-relative matrix
	SetLocalMatrix(t TransformID, local common.Mat4)

	// AbsoluteMatrix returns parent.AbsoluteMatrix * LocalMatrix for t, recomputing stale ancestors.
	AbsoluteMatrix(t TransformID) common.Mat4

	// AbsoluteMatrices resolves every absolute matrix in one pass under a single lock and stores
	// them in transform order. dst is reused when it has enough capacity.
	//
	// Parameters:
	//   - dst: optional destination slice
	//
	// Returns:
	//   - []common.Mat4: absolute matrices indexed by TransformID
	AbsoluteMatrices(dst []common.Mat4) []common.Mat4

	// ObjectModel returns the model drawn by o.
	ObjectModel(o ObjectID) model.Model

	// ObjectTransform returns the transform placing o.
	ObjectTransform(o ObjectID) TransformID
}

// scene is the implementation of the Scene interface.
type scene struct {
	mu         *sync.RWMutex
	name       string
	transforms []transformRecord
	objects    []objectRecord
}

// Ensure scene implements Scene interface.
var _ Scene = &scene{}

// NewScene creates an empty Scene.
//
// Parameters:
//   - options: functional options to configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(options ...SceneBuilderOption) Scene {
	s := &scene{
		mu: &sync.RWMutex{},
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) CreateTransform(parent TransformID) TransformID {
	return s.CreateMatrixTransform(parent, common.IdentityMatrix())
}

func (s *scene) CreateMatrixTransform(parent TransformID, local common.Mat4) TransformID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if parent != NoParent {
		s.mustTransform(parent)
	}
	id := TransformID(len(s.transforms))
	s.transforms = append(s.transforms, transformRecord{
		parent: parent,
		local:  local,
		dirty:  true,
	})
	if parent != NoParent {
		s.transforms[parent].children = append(s.transforms[parent].children, id)
	}
	return id
}

func (s *scene) CreateObject(m model.Model, t TransformID) ObjectID {
	if m == nil {
		panic("scene: CreateObject requires a non-nil Model")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mustTransform(t)
	id := ObjectID(len(s.objects))
	s.objects = append(s.objects, objectRecord{model: m, transform: t})
	return id
}

func (s *scene) Transforms() []TransformID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]TransformID, len(s.transforms))
	for i := range ids {
		ids[i] = TransformID(i)
	}
	return ids
}

func (s *scene) Objects() []ObjectID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]ObjectID, len(s.objects))
	for i := range ids {
		ids[i] = ObjectID(i)
	}
	return ids
}

func (s *scene) TransformCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transforms)
}

func (s *scene) ObjectCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func (s *scene) HasTransform(t TransformID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return t >= 0 && int(t) < len(s.transforms)
}

func (s *scene) HasObject(o ObjectID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return o >= 0 && int(o) < len(s.objects)
}

func (s *scene) Parent(t TransformID) TransformID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mustTransform(t).parent
}

func (s *scene) LocalMatrix(t TransformID) common.Mat4 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mustTransform(t).local
}

func (s *scene) SetLocalMatrix(t TransformID, local common.Mat4) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mustTransform(t).local = local
	s.invalidate(t)
}

func (s *scene) AbsoluteMatrix(t TransformID) common.Mat4 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mustTransform(t)
	return s.resolve(t)
}

func (s *scene) AbsoluteMatrices(dst []common.Mat4) []common.Mat4 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cap(dst) < len(s.transforms) {
		dst = make([]common.Mat4, len(s.transforms))
	}
	dst = dst[:len(s.transforms)]

	// parents precede children, so one forward pass resolves everything
	for i := range s.transforms {
		rec := &s.transforms[i]
		if rec.dirty {
			s.recompute(rec)
		}
		dst[i] = rec.absolute
	}
	return dst
}

func (s *scene) ObjectModel(o ObjectID) model.Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mustObject(o).model
}

func (s *scene) ObjectTransform(o ObjectID) TransformID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mustObject(o).transform
}

// mustTransform returns the record for t or panics. Callers hold s.mu.
func (s *scene) mustTransform(t TransformID) *transformRecord {
	if t < 0 || int(t) >= len(s.transforms) {
		panic(fmt.Sprintf("scene %q: transform %d does not belong to this scene (have %d)", s.name, t, len(s.transforms)))
	}
	return &s.transforms[t]
}

// mustObject returns the record for o or panics. Callers hold s.mu.
func (s *scene) mustObject(o ObjectID) *objectRecord {
	if o < 0 || int(o) >= len(s.objects) {
		panic(fmt.Sprintf("scene %q: object %d does not belong to this scene (have %d)", s.name, o, len(s.objects)))
	}
	return &s.objects[o]
}

// invalidate marks t and its descendants dirty. A dirty transform never has a clean descendant,
// so the walk stops at subtrees that are already dirty. Callers hold s.mu for writing.
func (s *scene) invalidate(t TransformID) {
	rec := &s.transforms[t]
	rec.dirty = true
	for _, c := range rec.children {
		if !s.transforms[c].dirty {
			s.invalidate(c)
		}
	}
}

// resolve returns the up-to-date absolute matrix of t. Callers hold s.mu for writing.
func (s *scene) resolve(t TransformID) common.Mat4 {
	rec := &s.transforms[t]
	if rec.dirty {
		if rec.parent != NoParent {
			s.resolve(rec.parent)
		}
		s.recompute(rec)
	}
	return rec.absolute
}

// recompute rebuilds rec.absolute from a parent that is already clean.
func (s *scene) recompute(rec *transformRecord) {
	if rec.parent == NoParent {
		rec.absolute = rec.local
	} else {
		rec.absolute = common.MulMat4(s.transforms[rec.parent].absolute, rec.local)
	}
	rec.dirty = false
}
