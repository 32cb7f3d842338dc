package version

// Version is the build version of the relay and the terminal peer. Release
// builds set it with:
//
//	go build -ldflags="-X 'github.com/BioHazard786/warpmesh/internal/version.Version=v1.0.0'"
var Version = "dev"
