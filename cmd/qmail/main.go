// Command qmail indexes, inspects and builds QWK offline mail packets.
package main

const version = "1.0.0"

func main() {
	Execute()
}
