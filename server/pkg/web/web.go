// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package web serves the collector's HTTP API and the websocket live-tail
// endpoint.
package web

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/tailpipedev/tailpipe/server/pkg/apppeer"
	"github.com/tailpipedev/tailpipe/server/pkg/linesearch"
	"github.com/tailpipedev/tailpipe/server/pkg/serverbase"
)

// Header constants
const (
	CacheControlHeaderKey     = "Cache-Control"
	CacheControlHeaderNoCache = "no-cache"

	ContentTypeHeaderKey = "Content-Type"
	ContentTypeJson      = "application/json"
)

const HttpReadTimeout = 5 * time.Second
const HttpWriteTimeout = 21 * time.Second
const HttpMaxHeaderBytes = 60000
const HttpTimeoutDuration = 21 * time.Second

type WebFnType = func(http.ResponseWriter, *http.Request)

type WebFnOpts struct {
	AllowCaching bool
	JsonErrors   bool
}

func WriteJsonError(w http.ResponseWriter, errVal error) {
	w.Header().Set(ContentTypeHeaderKey, ContentTypeJson)
	w.WriteHeader(http.StatusOK)
	errMap := make(map[string]any)
	errMap["error"] = errVal.Error()
	barr, _ := json.Marshal(errMap)
	w.Write(barr)
}

func WriteJsonSuccess(w http.ResponseWriter, data any) {
	w.Header().Set(ContentTypeHeaderKey, ContentTypeJson)
	rtnMap := make(map[string]any)
	rtnMap["success"] = true
	if data != nil {
		rtnMap["data"] = data
	}
	barr, err := json.Marshal(rtnMap)
	if err != nil {
		WriteJsonError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(barr)
}

func WebFnWrap(opts WebFnOpts, fn WebFnType) WebFnType {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logrus.Errorf("[web] panic in handler %s: %v", r.URL.Path, rec)
				if opts.JsonErrors {
					WriteJsonError(w, fmt.Errorf("internal server error"))
				} else {
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}
		}()
		if !opts.AllowCaching {
			w.Header().Set(CacheControlHeaderKey, CacheControlHeaderNoCache)
		}
		fn(w, r)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJsonSuccess(w, map[string]any{
		"status":  "ok",
		"time":    time.Now().UnixMilli(),
		"version": serverbase.TailpipeVersion,
	})
}

// handleAppRuns lists app runs, ordered by start time. ?since= (unix millis)
// restricts the listing to recently modified runs.
func handleAppRuns(w http.ResponseWriter, r *http.Request) {
	var since int64
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		parsed, err := strconv.ParseInt(sinceStr, 10, 64)
		if err != nil {
			WriteJsonError(w, fmt.Errorf("invalid since param: %v", err))
			return
		}
		since = parsed
	}
	appRuns := apppeer.GetAllAppRunPeerInfos(since)
	WriteJsonSuccess(w, map[string]any{"appruns": appRuns})
}

// handleLogLines returns an app run's stored lines, optionally filtered by
// ?search= with ?searchtype= (exact, exactcase, fzf, regexp).
func handleLogLines(w http.ResponseWriter, r *http.Request) {
	appRunId := r.URL.Query().Get("apprunid")
	if appRunId == "" {
		WriteJsonError(w, fmt.Errorf("apprunid param is required"))
		return
	}
	peer, ok := apppeer.GetAppRunPeerEx(appRunId)
	if !ok {
		WriteJsonError(w, fmt.Errorf("no app run found for id %s", appRunId))
		return
	}

	lines, trimmed := peer.Logs.GetAll()
	totalCount := len(lines)
	if searchTerm := r.URL.Query().Get("search"); searchTerm != "" {
		searcher, err := linesearch.MakeSearcher(r.URL.Query().Get("searchtype"), searchTerm)
		if err != nil {
			WriteJsonError(w, err)
			return
		}
		lines = linesearch.FilterLines(lines, searcher)
	}
	WriteJsonSuccess(w, map[string]any{
		"lines":        lines,
		"totalcount":   totalCount,
		"matchedcount": len(lines),
		"trimmedlines": trimmed,
	})
}

// handleProcStats returns an app run's proc stats history.
func handleProcStats(w http.ResponseWriter, r *http.Request) {
	appRunId := r.URL.Query().Get("apprunid")
	if appRunId == "" {
		WriteJsonError(w, fmt.Errorf("apprunid param is required"))
		return
	}
	peer, ok := apppeer.GetAppRunPeerEx(appRunId)
	if !ok {
		WriteJsonError(w, fmt.Errorf("no app run found for id %s", appRunId))
		return
	}
	stats, _ := peer.Stats.GetAll()
	WriteJsonSuccess(w, map[string]any{"stats": stats})
}

func MakeTCPListener(serviceName string, addr string) (net.Listener, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	rtn, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("error creating listener at %v: %v", addr, err)
	}
	logrus.Infof("server [%s] listening on %s", serviceName, rtn.Addr())
	return rtn, nil
}

// MakeRouter builds the API router (split out for testing).
func MakeRouter() *mux.Router {
	gr := mux.NewRouter()
	jsonOpts := WebFnOpts{AllowCaching: false, JsonErrors: true}
	gr.HandleFunc("/api/health", WebFnWrap(jsonOpts, handleHealth))
	gr.HandleFunc("/api/appruns", WebFnWrap(jsonOpts, handleAppRuns))
	gr.HandleFunc("/api/loglines", WebFnWrap(jsonOpts, handleLogLines))
	gr.HandleFunc("/api/procstats", WebFnWrap(jsonOpts, handleProcStats))
	return gr
}

// RunWebServer serves the JSON API on the listener. Blocking.
func RunWebServer(listener net.Listener) {
	var handler http.Handler = http.TimeoutHandler(MakeRouter(), HttpTimeoutDuration, "Timeout")
	if serverbase.IsDev() {
		handler = handlers.CORS(handlers.AllowedOrigins([]string{"*"}))(handler)
	}
	server := &http.Server{
		ReadTimeout:    HttpReadTimeout,
		WriteTimeout:   HttpWriteTimeout,
		MaxHeaderBytes: HttpMaxHeaderBytes,
		Handler:        handler,
	}
	if err := server.Serve(listener); err != nil {
		logrus.Errorf("[web] server error: %v", err)
	}
}

// RunAllWebServers starts the HTTP API and websocket servers on their
// configured ports. Non-blocking.
func RunAllWebServers() error {
	webListener, err := MakeTCPListener("web", fmt.Sprintf("127.0.0.1:%d", serverbase.GetWebServerPort()))
	if err != nil {
		return err
	}
	wsListener, err := MakeTCPListener("websocket", fmt.Sprintf("127.0.0.1:%d", serverbase.GetWebSocketPort()))
	if err != nil {
		return err
	}
	go RunWebServer(webListener)
	go RunWebSocketServer(wsListener)
	return nil
}
