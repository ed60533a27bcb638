package validate

import (
	"context"
	"testing"

	"github.com/bufbuild/protocompile"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

const testProto = `syntax = "proto3";
package saltfishpr.demo.user.v1;

import "google/protobuf/field_mask.proto";

message ListUserRequest {
  int32 offset = 1;
  int32 limit = 2;
}

message UpdateUserRequest {
  message User {
    string username = 1;
    string password = 2;
    string email = 3;
  }
  User user = 1;
  google.protobuf.FieldMask mask = 2;
}

enum Status {
  STATUS_UNSPECIFIED = 0;
  STATUS_ACTIVE = 1;
}

message Team {
  string name = 1;
  repeated UpdateUserRequest.User members = 2;
  map<string, UpdateUserRequest.User> by_role = 3;
  optional string slug = 4;
  uint32 size = 5;
  double score = 6;
  repeated string tags = 7;
  Status status = 8;
  bytes avatar = 9;
}

message Node {
  string id = 1;
  Node child = 2;
}
`

const (
	listUserRequest   protoreflect.FullName = "saltfishpr.demo.user.v1.ListUserRequest"
	updateUserRequest protoreflect.FullName = "saltfishpr.demo.user.v1.UpdateUserRequest"
	userMessage       protoreflect.FullName = "saltfishpr.demo.user.v1.UpdateUserRequest.User"
	teamMessage       protoreflect.FullName = "saltfishpr.demo.user.v1.Team"
	nodeMessage       protoreflect.FullName = "saltfishpr.demo.user.v1.Node"
	fieldMask         protoreflect.FullName = "google.protobuf.FieldMask"
)

// testFile compiles testProto in memory.
func testFile(t *testing.T) protoreflect.FileDescriptor {
	t.Helper()

	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			Accessor: protocompile.SourceAccessorFromMap(map[string]string{"user.proto": testProto}),
		}),
	}
	files, err := compiler.Compile(context.Background(), "user.proto")
	require.NoError(t, err)
	require.Len(t, files, 1)
	return files[0]
}

func findMessage(t *testing.T, fd protoreflect.FileDescriptor, name protoreflect.FullName) protoreflect.MessageDescriptor {
	t.Helper()

	d := fd.Messages().ByName(name.Name())
	if d == nil {
		// Nested: UpdateUserRequest.User
		parent := fd.Messages().ByName(name.Parent().Name())
		require.NotNil(t, parent, "message %s", name)
		d = parent.Messages().ByName(name.Name())
	}
	require.NotNil(t, d, "message %s", name)
	return d
}

// demoRules mirrors the constraints of the user service.
func demoRules(t *testing.T, fd protoreflect.FileDescriptor) *Registry {
	t.Helper()

	reg := NewRegistry()
	require.NoError(t, reg.RegisterRules(findMessage(t, fd, listUserRequest), MessageRules{
		Fields: []FieldRules{
			{Name: "offset", Constraints: []Constraint{Gte(Int(0))}},
			{Name: "limit", Constraints: []Constraint{Between(Int(0), Int(500))}},
		},
	}))
	require.NoError(t, reg.RegisterRules(findMessage(t, fd, updateUserRequest), MessageRules{
		Fields: []FieldRules{
			{Name: "user", Constraints: []Constraint{Required{}}},
		},
	}))
	// Declared out of order on purpose: evaluation follows the descriptor.
	require.NoError(t, reg.RegisterRules(findMessage(t, fd, userMessage), MessageRules{
		Fields: []FieldRules{
			{Name: "email", Constraints: []Constraint{Email()}},
			{Name: "password", Constraints: []Constraint{LenBetween(6, 32)}},
			{Name: "username", Constraints: []Constraint{LenBetween(3, 32)}},
		},
	}))
	require.NoError(t, reg.Register(fieldMask, Passthrough))
	return reg
}

func newMessage(t *testing.T, fd protoreflect.FileDescriptor, name protoreflect.FullName) *dynamicpb.Message {
	t.Helper()
	return dynamicMessage(t, findMessage(t, fd, name))
}

func dynamicMessage(t *testing.T, md protoreflect.MessageDescriptor) *dynamicpb.Message {
	t.Helper()
	return dynamicpb.NewMessage(md)
}

func set(msg protoreflect.Message, field protoreflect.Name, v protoreflect.Value) {
	msg.Set(msg.Descriptor().Fields().ByName(field), v)
}

func newUser(t *testing.T, fd protoreflect.FileDescriptor, username, password, email string) *dynamicpb.Message {
	t.Helper()

	user := newMessage(t, fd, userMessage)
	set(user, "username", protoreflect.ValueOfString(username))
	set(user, "password", protoreflect.ValueOfString(password))
	set(user, "email", protoreflect.ValueOfString(email))
	return user
}
