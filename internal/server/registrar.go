package server

import (
	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
)

// Registrar is a common interface for all gRPC service registrars
type Registrar interface {
	Register(s *grpc.Server)
}

// RouteRegistrar is the HTTP counterpart: each service mounts its JSON
// routes under the /api group.
type RouteRegistrar interface {
	RegisterRoutes(rg gin.IRouter)
}
