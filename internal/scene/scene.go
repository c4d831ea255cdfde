// Package scene is the host-facing surface of the translator. It defines the
// object graph the importer produces and the exporter consumes, and the
// persistent blob storage used to round-trip package annotations across
// sessions.
//
// The translator never owns or mutates a host's objects; hosts adapt their
// scene representation to these types.
package scene

import (
	"sort"

	"github.com/philipparndt/scene3mf/internal/geometry"
	"github.com/philipparndt/scene3mf/internal/metadata"
)

// Color is an RGBA color with 8 bits per channel.
type Color struct {
	R, G, B, A uint8
}

// Material is a named material slot. Color may be nil when the source
// document declared none.
type Material struct {
	Name  string
	Color *Color
}

// Triangle references three vertices of its own mesh. Material indexes the
// mesh's material slot list, or is -1 when the triangle has no material.
type Triangle struct {
	V1, V2, V3 int
	Material   int
}

// Mesh is a triangulated mesh snapshot.
type Mesh struct {
	Vertices  []geometry.Vec3
	Triangles []Triangle
	Materials []Material
}

// Object is a placed object in the scene. Objects form a tree through the
// Parent link; Transform is the world transform.
type Object struct {
	Name      string
	Parent    *Object
	Mesh      *Mesh
	Transform geometry.Mat4
	Metadata  *metadata.Store
	// NoRender marks support geometry that should not be rendered.
	NoRender bool
}

// NewObject creates an object with an identity transform and an empty
// metadata store.
func NewObject(name string) *Object {
	return &Object{
		Name:      name,
		Transform: geometry.Identity(),
		Metadata:  metadata.NewStore(),
	}
}

// BlobStore is a persistent named-text-blob storage scoped to the host
// project. It survives a save and reload of the host's own project file.
type BlobStore interface {
	Get(name string) (string, bool)
	Set(name, contents string)
	Delete(name string)
	Names() []string
}

// MemoryBlobStore is an in-memory BlobStore, used by the CLI and in tests.
type MemoryBlobStore struct {
	blobs map[string]string
}

// NewMemoryBlobStore creates an empty in-memory blob store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: map[string]string{}}
}

func (m *MemoryBlobStore) Get(name string) (string, bool) {
	contents, ok := m.blobs[name]
	return contents, ok
}

func (m *MemoryBlobStore) Set(name, contents string) {
	m.blobs[name] = contents
}

func (m *MemoryBlobStore) Delete(name string) {
	delete(m.blobs, name)
}

func (m *MemoryBlobStore) Names() []string {
	names := make([]string, 0, len(m.blobs))
	for name := range m.blobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StaticUnits is a fixed unit configuration implementing units.Settings.
type StaticUnits struct {
	Unit  string
	Scale float64
}

func (u StaticUnits) LengthUnit() string   { return u.Unit }
func (u StaticUnits) ScaleLength() float64 { return u.Scale }

// Scene holds everything one import/export session works against: the object
// list, scene-level metadata and the persistent blob store.
type Scene struct {
	Objects  []*Object
	Metadata *metadata.Store
	Blobs    BlobStore
}

// NewScene creates an empty scene backed by an in-memory blob store.
func NewScene() *Scene {
	return &Scene{
		Metadata: metadata.NewStore(),
		Blobs:    NewMemoryBlobStore(),
	}
}

// Add links an object into the scene.
func (s *Scene) Add(obj *Object) {
	s.Objects = append(s.Objects, obj)
}

// Roots returns the objects without a parent, in scene order.
func (s *Scene) Roots() []*Object {
	var roots []*Object
	for _, obj := range s.Objects {
		if obj.Parent == nil {
			roots = append(roots, obj)
		}
	}
	return roots
}

// Children returns the direct children of parent, in scene order.
func (s *Scene) Children(parent *Object) []*Object {
	var children []*Object
	for _, obj := range s.Objects {
		if obj.Parent == parent {
			children = append(children, obj)
		}
	}
	return children
}
