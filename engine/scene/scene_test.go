package scene

import (
	"sync"
	"testing"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/model"
	"github.com/Carmen-Shannon/excess/engine/renderer/material"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-5

func testModel() model.Model {
	return model.NewModel(model.NewCubeMesh("cube", 1), material.NewMaterial())
}

func TestHierarchyComposition(t *testing.T) {
	s := NewScene(WithName("chain"))
	lRoot := common.RotationMatrix(0.3, 0, 0, 1)
	lA := common.TranslationMatrix(1, 2, 3)
	lB := common.MulMat4(common.RotationMatrix(1.1, 1, 0, 0), common.TranslationMatrix(-2, 0, 0.5))

	root := s.CreateMatrixTransform(NoParent, lRoot)
	a := s.CreateMatrixTransform(root, lA)
	b := s.CreateMatrixTransform(a, lB)

	want := common.MulMat4(common.MulMat4(lRoot, lA), lB)
	assert.True(t, common.ApproxEqualMat4(want, s.AbsoluteMatrix(b), eps))
	assert.Equal(t, a, s.Parent(b))
	assert.Equal(t, NoParent, s.Parent(root))
}

func TestSetLocalMatrixPropagates(t *testing.T) {
	s := NewScene()
	root := s.CreateTransform(NoParent)
	child := s.CreateMatrixTransform(root, common.TranslationMatrix(1, 0, 0))
	grandchild := s.CreateMatrixTransform(child, common.TranslationMatrix(0, 1, 0))

	// resolve once so the cache is clean before the update
	_ = s.AbsoluteMatrices(nil)

	s.SetLocalMatrix(root, common.TranslationMatrix(0, 0, 5))
	p := common.TransformPoint(s.AbsoluteMatrix(grandchild), 0, 0, 0)
	assert.Equal(t, [4]float32{1, 1, 5, 1}, p)

	// resolving only the grandchild must not leave a stale sibling behind
	sibling := s.CreateMatrixTransform(root, common.TranslationMatrix(0, 2, 0))
	s.SetLocalMatrix(root, common.TranslationMatrix(0, 0, -5))
	_ = s.AbsoluteMatrix(grandchild)
	p = common.TransformPoint(s.AbsoluteMatrix(sibling), 0, 0, 0)
	assert.Equal(t, [4]float32{0, 2, -5, 1}, p)
}

func TestAbsoluteMatricesMatchesSingleLookups(t *testing.T) {
	s := NewScene(WithCapacity(4, 0))
	r := s.CreateMatrixTransform(NoParent, common.RotationMatrix(0.5, 0, 1, 0))
	c1 := s.CreateMatrixTransform(r, common.TranslationMatrix(1, 0, 0))
	s.CreateMatrixTransform(c1, common.TranslationMatrix(0, 0, 1))
	s.CreateTransform(NoParent)

	all := s.AbsoluteMatrices(make([]common.Mat4, 0, 8))
	require.Len(t, all, 4)
	for _, id := range s.Transforms() {
		assert.Equal(t, s.AbsoluteMatrix(id), all[id])
	}
}

func TestObjects(t *testing.T) {
	s := NewScene()
	m := testModel()
	t1 := s.CreateTransform(NoParent)
	t2 := s.CreateTransform(t1)
	o1 := s.CreateObject(m, t1)
	o2 := s.CreateObject(m, t2)

	assert.Equal(t, []ObjectID{o1, o2}, s.Objects())
	assert.Equal(t, []TransformID{t1, t2}, s.Transforms())
	assert.Equal(t, 2, s.ObjectCount())
	assert.Equal(t, 2, s.TransformCount())
	assert.Equal(t, m, s.ObjectModel(o2))
	assert.Equal(t, t2, s.ObjectTransform(o2))
	assert.True(t, s.HasObject(o1))
	assert.False(t, s.HasObject(ObjectID(7)))
}

func TestContractViolationsPanic(t *testing.T) {
	s := NewScene()
	other := NewScene()
	foreign := other.CreateTransform(NoParent)
	_ = other.CreateTransform(foreign)

	tests := []struct {
		name string
		fn   func()
	}{
		{"unknown parent", func() { s.CreateTransform(TransformID(3)) }},
		{"foreign transform on object", func() { s.CreateObject(testModel(), TransformID(1)) }},
		{"nil model", func() { s.CreateObject(nil, s.CreateTransform(NoParent)) }},
		{"negative handle", func() { s.LocalMatrix(TransformID(-2)) }},
		{"unknown object", func() { s.ObjectModel(ObjectID(9)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, tt.fn)
		})
	}
}

func TestConcurrentUpdatesAndReads(t *testing.T) {
	s := NewScene()
	root := s.CreateTransform(NoParent)
	leaf := s.CreateTransform(root)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.SetLocalMatrix(root, common.TranslationMatrix(float32(i), 0, 0))
		}(i)
		go func() {
			defer wg.Done()
			_ = s.AbsoluteMatrix(leaf)
			_ = s.AbsoluteMatrices(nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, s.LocalMatrix(root), s.AbsoluteMatrix(leaf))
}
