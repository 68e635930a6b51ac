package scene

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithName sets the scene's identifier.
//
// Parameters:
//   - name: the scene name
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithName(name string) SceneBuilderOption {
	return func(s *scene) {
		s.name = name
	}
}

// WithCapacity pre-sizes the transform and object arenas.
//
// Parameters:
//   - transforms: expected number of transforms
//   - objects: expected number of objects
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCapacity(transforms, objects int) SceneBuilderOption {
	return func(s *scene) {
		s.transforms = make([]transformRecord, 0, max(transforms, 0))
		s.objects = make([]objectRecord, 0, max(objects, 0))
	}
}
