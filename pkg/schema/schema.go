// Package schema compiles .proto sources into descriptors that the
// validation engine and its adapters work with.
package schema

import (
	"context"
	"fmt"
	"sort"

	"github.com/bufbuild/protocompile"
	"github.com/bufbuild/protocompile/linker"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Schema is a set of compiled proto files together with everything they
// import. It is immutable and safe for concurrent use.
type Schema struct {
	files    linker.Files
	registry *protoregistry.Files
	types    *dynamicpb.Types
	messages map[protoreflect.FullName]protoreflect.MessageDescriptor
	order    []protoreflect.FullName
}

// Compile compiles in-memory sources keyed by path. When files is empty
// every source is compiled.
func Compile(ctx context.Context, sources map[string]string, files ...string) (*Schema, error) {
	if len(files) == 0 {
		for path := range sources {
			files = append(files, path)
		}
		sort.Strings(files)
	}

	return compile(ctx, &protocompile.SourceResolver{
		Accessor: protocompile.SourceAccessorFromMap(sources),
	}, files)
}

// Load compiles files found under importPaths on disk.
func Load(ctx context.Context, importPaths []string, files ...string) (*Schema, error) {
	return compile(ctx, &protocompile.SourceResolver{ImportPaths: importPaths}, files)
}

func compile(ctx context.Context, resolver protocompile.Resolver, files []string) (*Schema, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(resolver),
	}
	result, err := compiler.Compile(ctx, files...)
	if err != nil {
		return nil, fmt.Errorf("protocompile failed: %w", err)
	}

	return newSchema(result)
}

func newSchema(files linker.Files) (*Schema, error) {
	s := &Schema{
		files:    files,
		registry: new(protoregistry.Files),
		messages: make(map[protoreflect.FullName]protoreflect.MessageDescriptor),
	}

	seen := make(map[string]bool)
	var visit func(fd protoreflect.FileDescriptor) error
	visit = func(fd protoreflect.FileDescriptor) error {
		if seen[fd.Path()] {
			return nil
		}
		seen[fd.Path()] = true

		imports := fd.Imports()
		for i := 0; i < imports.Len(); i++ {
			if err := visit(imports.Get(i).FileDescriptor); err != nil {
				return err
			}
		}
		if err := s.registry.RegisterFile(fd); err != nil {
			return fmt.Errorf("register %s: %w", fd.Path(), err)
		}
		s.addMessages(fd.Messages())
		return nil
	}

	for _, fd := range files {
		if err := visit(fd); err != nil {
			return nil, err
		}
	}

	s.types = dynamicpb.NewTypes(s.registry)
	return s, nil
}

func (s *Schema) addMessages(msgs protoreflect.MessageDescriptors) {
	for i := 0; i < msgs.Len(); i++ {
		md := msgs.Get(i)
		if md.IsMapEntry() {
			continue
		}
		s.messages[md.FullName()] = md
		s.order = append(s.order, md.FullName())
		s.addMessages(md.Messages())
	}
}

// Files returns the compiled root files, without imports.
func (s *Schema) Files() []protoreflect.FileDescriptor {
	out := make([]protoreflect.FileDescriptor, len(s.files))
	for i, f := range s.files {
		out[i] = f
	}
	return out
}

// FindMessage returns the descriptor of a message declared by the schema
// or one of its imports.
func (s *Schema) FindMessage(name protoreflect.FullName) (protoreflect.MessageDescriptor, error) {
	md, ok := s.messages[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, name)
	}
	return md, nil
}

// Messages returns every message descriptor, nested and imported ones
// included, with imports first and declaration order within a file.
func (s *Schema) Messages() []protoreflect.MessageDescriptor {
	out := make([]protoreflect.MessageDescriptor, len(s.order))
	for i, name := range s.order {
		out[i] = s.messages[name]
	}
	return out
}

// NewMessage returns an empty dynamic message of the named type.
func (s *Schema) NewMessage(name protoreflect.FullName) (*dynamicpb.Message, error) {
	md, err := s.FindMessage(name)
	if err != nil {
		return nil, err
	}
	return dynamicpb.NewMessage(md), nil
}

// UnmarshalJSON decodes a protojson document into a message of the named
// type. Unknown fields are rejected.
func (s *Schema) UnmarshalJSON(name protoreflect.FullName, data []byte) (*dynamicpb.Message, error) {
	msg, err := s.NewMessage(name)
	if err != nil {
		return nil, err
	}

	opts := protojson.UnmarshalOptions{Resolver: s.types}
	if err := opts.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return msg, nil
}

// Types returns a type resolver over the schema's messages.
func (s *Schema) Types() *dynamicpb.Types {
	return s.types
}
