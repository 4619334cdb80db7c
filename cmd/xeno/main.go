// Xeno CLI - compile and run Xeno programs on a hosted console.
package main

func main() {
	Execute()
}
