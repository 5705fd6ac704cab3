// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command rbcallgraph builds a static call graph for one Ruby source file.
//
// It records which methods the file defines and which receiver-less calls
// each of them makes, then prints list projections and writes the graph in
// the requested formats.
//
// Usage:
//
//	rbcallgraph [options] path/to/file.rb
//
// Examples:
//
//	# Methods defined in the file
//	rbcallgraph -d app/models/user.rb
//
//	# Methods called but not defined here, plus a Graphviz graph
//	rbcallgraph -r --dot user.dot app/models/user.rb
//	dot -Tpdf user.dot -o user.pdf
//
//	# Load into Neo4j
//	RBCALLGRAPH_NEO4J_PASSWORD=secret rbcallgraph --neo4j-uri neo4j://localhost:7687 app/models/user.rb
//
// Exit codes:
//
//	0 - success
//	1 - usage or configuration error
//	2 - the input file could not be read or parsed
//	3 - an output file or database could not be written
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
