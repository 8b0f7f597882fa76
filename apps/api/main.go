package main

// TODO:
// - Profiling (Benchmarking) !! https://blog.golang.org/pprof
// - CSRF once the admin frontend is served from another origin
func main() {
	startWithDig()
}
