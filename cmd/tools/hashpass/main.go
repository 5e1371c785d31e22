package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/alexedwards/argon2id"
)

// hashpass prints an argon2id hash for ADMIN_PASSWORD_HASH. The password is read from the
// first line of stdin so it never lands in shell history.
func main() {
	memory := flag.Uint("memory", 64*1024, "argon2 memory in KiB")
	iterations := flag.Uint("iterations", 1, "argon2 iterations")
	flag.Parse()

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintf(os.Stderr, "hashpass: read password: %v\n", err)
		os.Exit(2)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		fmt.Fprintln(os.Stderr, "hashpass: empty password")
		os.Exit(1)
	}

	params := *argon2id.DefaultParams
	params.Memory = uint32(*memory)
	params.Iterations = uint32(*iterations)
	hash, err := argon2id.CreateHash(password, &params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hashpass: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
