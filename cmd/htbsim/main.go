package main

import "github.com/htbsim/htbsim/cmd/htbsim/commands"

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	commands.SetVersionInfo(version, buildTime, gitCommit)
	commands.Execute()
}
