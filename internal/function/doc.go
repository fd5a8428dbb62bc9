// Package function hosts HTTP-triggered functions behind the authorization
// middleware.
//
// Each Function names the handler method whose declarations apply. The host
// resolves the handler's requirements once at registration and routes the
// function over chi with request id, tracing, logging, metrics, panic
// recovery and rate limiting. Panic recovery is the top-level fault handler:
// a panicking authorization filter ends as a 500 response.
//
// # Usage
//
//	host := function.NewHost(catalog, dispatcher,
//		function.WithHostLogger(logger),
//		function.WithHostMetrics(metrics),
//	)
//	_, err := host.Register(function.Function{
//		Name:    "orders-get",
//		Method:  http.MethodGet,
//		Route:   "/orders/{id}",
//		Handler: authz.HandlerRef{Type: "Orders", Method: "Get", Params: []string{"string"}},
//		Func: func(w http.ResponseWriter, r *http.Request) {
//			user := function.User(r)
//			...
//		},
//	})
package function
