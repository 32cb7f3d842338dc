package main

import (
	"github.com/BioHazard786/warpmesh/internal/client/command"
	"github.com/BioHazard786/warpmesh/internal/logging"
)

func main() {
	command.Execute(logging.FromEnv("warpmesh"))
}
