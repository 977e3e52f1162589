package main

import "sql-cleanser/cmd"

func main() {
	cmd.Execute()
}
