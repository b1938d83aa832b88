// Command mcplab runs the tool server connection and authorization service.
package main

// version is set during build with -ldflags.
var version = "dev"

func main() {
	execute()
}
