// querygate serves a read-only query gateway between an AI client and a
// configured database backend, speaking MCP over stdio.
package main

import "github.com/querygate/querygate/cmd"

func main() {
	cmd.Execute()
}
