// Command foreman plans projects into dependency graphs of tasks and
// drives them to completion on agents.
package main

func main() {
	Execute()
}
