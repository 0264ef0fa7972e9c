// Command summarizerd serves streaming summaries and agent chat over HTTP.
package main

func main() {
	Execute()
}
