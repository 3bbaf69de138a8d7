package main

import "github.com/Taichi-iskw/yt-library/cmd"

func main() {
	cmd.Execute()
}
