//go:build !linux

package file

import "os"

func adviseSequential(*os.File) {}

func adviseDontNeed(*os.File) {}
