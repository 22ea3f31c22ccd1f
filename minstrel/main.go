// Command minstrel inspects the calls recorded by an instrumented program.
package main

import "github.com/sarchlab/minstrel/minstrel/cmd"

func main() {
	cmd.Execute()
}
