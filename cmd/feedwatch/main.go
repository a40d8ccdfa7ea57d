// Package main tails the live competition feed from the terminal.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ctfarena/internal/notifications"

	"github.com/gorilla/websocket"
)

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	secure := flag.Bool("tls", false, "Use wss:// and https://")
	username := flag.String("username", "", "Log in first (optional; the feed is public)")
	password := flag.String("password", "", "Password for -username")
	flag.Parse()

	token := ""
	if *username != "" {
		var err error
		token, err = login(*host, *secure, *username, *password)
		if err != nil {
			log.Fatalf("Login failed: %v", err)
		}
	}

	u := url.URL{Scheme: "ws", Host: *host, Path: "/api/ws/feed"}
	if *secure {
		u.Scheme = "wss"
	}
	if token != "" {
		u.RawQuery = url.Values{"token": {token}}.Encode()
	}

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		if resp != nil {
			log.Fatalf("Dial failed: %v (HTTP %d)", err, resp.StatusCode)
		}
		log.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = conn.Close() }()
	log.Printf("Connected to %s", u.Host)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}
			fmt.Println(render(data))
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

// render formats one feed frame as a single line.
func render(data []byte) string {
	var event notifications.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return string(data)
	}

	switch event.Type {
	case notifications.EventSolve:
		var solve notifications.SolveEvent
		if err := json.Unmarshal(event.Payload, &solve); err != nil {
			break
		}
		marker := ""
		if solve.FirstBlood {
			marker = " [FIRST BLOOD]"
		}
		return fmt.Sprintf("%s  %s solved %q for %d pts%s",
			solve.SolvedAt.Local().Format(time.TimeOnly), solve.Username, solve.ChallengeTitle, solve.Points, marker)
	case notifications.EventReview:
		var review notifications.ReviewEvent
		if err := json.Unmarshal(event.Payload, &review); err != nil {
			break
		}
		return fmt.Sprintf("submission %d %s", review.SubmissionID, review.Status)
	case notifications.EventReset:
		return "scoreboard reset"
	}
	return string(data)
}

func login(host string, secure bool, username, password string) (string, error) {
	scheme := "http"
	if secure {
		scheme = "https"
	}
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(scheme+"://"+host+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}
