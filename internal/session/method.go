package session

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
)

// Method describes a unary RPC: its full wire name and how to allocate a
// response message to decode into.
type Method struct {
	// FullName has the form "/package.Service/Method".
	FullName    string
	NewResponse func() proto.Message
}

// UnaryMethod builds a Method.
func UnaryMethod(fullName string, newResponse func() proto.Message) Method {
	return Method{FullName: fullName, NewResponse: newResponse}
}

// Validate reports whether m can be invoked.
func (m Method) Validate() error {
	if m.NewResponse == nil {
		return fmt.Errorf("method %q has no response constructor", m.FullName)
	}
	name, ok := strings.CutPrefix(m.FullName, "/")
	if !ok {
		return fmt.Errorf("method name %q must start with /", m.FullName)
	}
	service, method, ok := strings.Cut(name, "/")
	if !ok || service == "" || method == "" || strings.Contains(method, "/") {
		return fmt.Errorf("method name %q must look like /package.Service/Method", m.FullName)
	}
	return nil
}
