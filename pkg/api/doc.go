// Package api contains the festival domain types, the store interfaces the
// storage backends implement, and the HTTP handlers of the festival API.
//
// # Endpoints
//
//	POST /api/auth/login                    token for valid credentials
//	POST /api/auth/register                 create an account, returns a token
//	GET  /api/auth/me                       the authenticated account
//	GET  /api/festivals                     page of festivals, ?q= searches
//	POST /api/festivals                     create a festival
//	GET  /api/festivals/{id}                one festival
//	GET  /api/festivals/{id}/performances   page of a festival's performances
//	POST /api/festivals/{id}/performances   submit a performance
//	GET  /api/performances/{id}             one performance
//	GET  /api/users                         all accounts
//	GET  /api/users/{username}              one account
//	GET  /api/users/exists/username/{u}     true or false
//	GET  /api/users/exists/email/{e}        true or false
//
// Authentication and access decisions happen in pkg/middleware before a
// handler runs. Handlers that need the caller read it with auth.CurrentUser.
//
// # Usage
//
//	server := api.NewServer(api.Dependencies{
//		Users:        users,
//		Festivals:    festivals,
//		Performances: performances,
//		Tokens:       tokenService,
//		Logger:       logger,
//	})
//	http.ListenAndServe(":8080", server)
//
// Paged endpoints accept page (zero-based) and size (1 to 100, default 10)
// and answer with a Page.
package api
