// Command evsim runs traffic scenarios on the evsim discrete-event
// simulator.
package main

import "github.com/sarchlab/evsim/evsim/cmd"

func main() {
	cmd.Execute()
}
