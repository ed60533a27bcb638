// Package interceptor validates inbound gRPC requests.
//
// Requests with violations fail with codes.InvalidArgument and an
// errdetails.BadRequest listing each field path. A configuration error
// fails with codes.Internal. Types without a registered validator pass
// unless WithStrict is set.
//
//	server := grpc.NewServer(
//		grpc.ChainUnaryInterceptor(interceptor.UnaryServerInterceptor(inst)),
//		grpc.ChainStreamInterceptor(interceptor.StreamServerInterceptor(inst)),
//	)
//
// Clients may send the x-protoguard-mode metadata header ("fail_fast" or
// "accumulate_all") to pick the mode for a single call.
package interceptor
