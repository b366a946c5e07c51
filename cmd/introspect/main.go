package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	transportgrpc "github.com/orsocook/orso-auth/internal/transport/grpc"
)

// introspect checks an access token against a running auth service over gRPC.
func main() {
	addr := flag.String("addr", "localhost:9090", "introspection server address")
	token := flag.String("token", os.Getenv("ORSO_ACCESS_TOKEN"), "access token to check")
	whoami := flag.Bool("whoami", false, "also fetch the user behind the token")
	timeout := flag.Duration("timeout", 10*time.Second, "call timeout")
	flag.Parse()

	if *token == "" {
		log.Fatal("an access token is required (-token or ORSO_ACCESS_TOKEN)")
	}

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := transportgrpc.NewIntrospectionClient(conn)
	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")

	resp, err := client.ValidateAccessToken(ctx, &transportgrpc.ValidateTokenRequest{Token: *token})
	if err != nil {
		log.Fatalf("ValidateAccessToken: %v", err)
	}
	_ = out.Encode(resp)

	if !*whoami || !resp.Valid {
		return
	}

	authCtx := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+*token)
	user, err := client.CurrentUser(authCtx, &transportgrpc.CurrentUserRequest{})
	if err != nil {
		log.Fatalf("CurrentUser: %v", err)
	}
	_ = out.Encode(user)
}
