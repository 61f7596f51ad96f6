package main

import "github.com/jayteealao/colab/cmd"

func main() {
	cmd.Execute()
}
