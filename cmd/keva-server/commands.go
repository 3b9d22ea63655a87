package main

// commands creates a new router and registers all the application's command
// handlers. This is the single source of truth for what commands the server
// supports.
func (app *application) commands() *Router {
	router := newRouter()

	// Connection
	router.handle("ping", app.handlePing)
	router.handle("quit", app.handleQuit)
	router.handle("client", app.handleClient)

	// Introspection
	router.handle("command", app.handleCommand)
	router.handle("info", app.handleInfo)

	// Keyspace
	router.handle("scan", app.handleScan)
	router.handle("del", app.handleDel)
	router.handle("exists", app.handleExists)

	// Strings
	router.handle("get", app.handleGet)
	router.handle("set", app.handleSet)
	router.handle("append", app.handleAppend)
	router.handle("incr", app.handleIncr)
	router.handle("decr", app.handleDecr)
	router.handle("incrby", app.handleIncrBy)
	router.handle("decrby", app.handleDecrBy)

	return router
}
