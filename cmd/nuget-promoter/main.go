package main

import "github.com/oshokin/nuget-promoter/cmd/nuget-promoter/cmd"

func main() {
	cmd.Execute()
}
