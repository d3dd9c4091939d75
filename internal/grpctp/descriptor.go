package grpctp

import (
	"sync"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Subgraphs reachable over gRPC implement this service:
//
//	package fedfetch.subgraph.v1;
//
//	message ExecuteRequest {
//	  string query = 1;
//	  string operation_name = 2;
//	  string variables_json = 3;
//	  string operation_kind = 4;
//	  string query_hash = 5;
//	  string service_name = 6;
//	}
//
//	message ExecuteResponse {
//	  string body_json = 1;
//	}
//
//	service Subgraph {
//	  rpc Execute(ExecuteRequest) returns (ExecuteResponse);
//	}
//
// body_json holds a complete GraphQL response document.
const (
	packageName = "fedfetch.subgraph.v1"
	serviceName = "Subgraph"
	methodName  = "Execute"
)

var executeMethod = sync.OnceValues(buildExecuteMethod)

// ExecuteMethod returns the descriptor of Subgraph/Execute.
func ExecuteMethod() (protoreflect.MethodDescriptor, error) {
	return executeMethod()
}

func buildExecuteMethod() (protoreflect.MethodDescriptor, error) {
	file := protobuilder.NewFile("fedfetch/subgraph/v1/subgraph.proto")
	file.SetPackageName(protoreflect.FullName(packageName))
	file.SetSyntax(protoreflect.Proto3)

	requestMB := protobuilder.NewMessage("ExecuteRequest")
	for i, name := range []protoreflect.Name{"query", "operation_name", "variables_json", "operation_kind", "query_hash", "service_name"} {
		fb := protobuilder.NewField(name, protobuilder.FieldTypeScalar(protoreflect.StringKind))
		fb.SetNumber(protoreflect.FieldNumber(i + 1))
		requestMB.AddField(fb)
	}

	responseMB := protobuilder.NewMessage("ExecuteResponse")
	body := protobuilder.NewField("body_json", protobuilder.FieldTypeScalar(protoreflect.StringKind))
	body.SetNumber(protoreflect.FieldNumber(1))
	responseMB.AddField(body)

	sb := protobuilder.NewService(serviceName)
	sb.AddMethod(protobuilder.NewMethod(
		methodName,
		protobuilder.RpcTypeMessage(requestMB, false),
		protobuilder.RpcTypeMessage(responseMB, false),
	))
	file.AddMessage(requestMB)
	file.AddMessage(responseMB)
	file.AddService(sb)

	fd, err := file.Build()
	if err != nil {
		return nil, err
	}
	return fd.Services().ByName(serviceName).Methods().ByName(methodName), nil
}
