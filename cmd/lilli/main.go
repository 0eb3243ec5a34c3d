// Command lilli is a conversational assistant for a flower shop. Each request
// is routed to one or more capability handlers whose answers are combined
// into a single reply.
package main

func main() {
	Execute()
}
