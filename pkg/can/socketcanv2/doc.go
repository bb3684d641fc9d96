// Package socketcanv2 is a raw socketcan backend built directly on
// golang.org/x/sys/unix. It is only available on linux.
package socketcanv2
