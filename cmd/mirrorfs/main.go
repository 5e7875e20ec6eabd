// Command mirrorfs mounts a pass-through mirror of one directory tree
// at another mount point.
package main

import "github.com/pascalio/mirrorfs/cmd"

func main() {
	cmd.Execute()
}
