// Copyright 2020 The go-daq Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq // import "github.com/go-daq/acq"

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"

	"github.com/go-daq/acq/log"
)

// WebMon serves a browser monitor for an engine: a command endpoint,
// live state and data streams over websockets and the Prometheus
// metrics of the engine.
type WebMon struct {
	eng  *Engine
	msg  log.MsgStream
	srv  *http.Server
	quit chan struct{}
}

// NewWebMon creates a web monitor listening on addr.
func NewWebMon(eng *Engine, addr string, msg log.MsgStream) *WebMon {
	if msg == nil {
		msg = log.Default
	}
	web := &WebMon{
		eng:  eng,
		msg:  msg,
		quit: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", web.home)
	mux.HandleFunc("/cmd", web.cmd)
	mux.Handle("/status", websocket.Handler(web.status))
	mux.Handle("/data", websocket.Handler(web.data))
	mux.Handle("/metrics", promhttp.HandlerFor(eng.Gatherer(), promhttp.HandlerOpts{}))
	web.srv = &http.Server{Addr: addr, Handler: mux}
	return web
}

// Run serves until the context is done.
func (web *WebMon) Run(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
		case <-web.quit:
		}
		_ = web.srv.Shutdown(context.Background())
	}()

	web.msg.Infof("starting web monitor on %q...", web.srv.Addr)
	err := web.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close shuts the monitor down.
func (web *WebMon) Close() error {
	close(web.quit)
	return nil
}

func (web *WebMon) home(w http.ResponseWriter, r *http.Request) {
	t, err := template.New("acq-home").Parse(webHomePage)
	if err != nil {
		web.msg.Errorf("error parsing web home-page: %+v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	err = t.Execute(w, nil)
	if err != nil {
		web.msg.Errorf("error executing web home-page template: %+v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (web *WebMon) cmd(w http.ResponseWriter, r *http.Request) {
	err := r.ParseForm()
	if err != nil {
		web.msg.Errorf("could not parse command form: %+v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	id := r.PostFormValue("id")
	s, err := web.eng.Session(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	cmd := r.PostFormValue("cmd")
	switch cmd {
	case "/start":
		err = s.Start()
	case "/stop":
		err = s.Stop()
	case "/pause":
		err = s.Pause()
	case "/resume":
		err = s.Resume()
	case "/reset":
		err = s.Reset()
	default:
		web.msg.Errorf("received invalid cmd %q over web-gui", cmd)
		err = fmt.Errorf("received invalid cmd %q", cmd)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err != nil {
		web.msg.Errorf("could not run cmd %q on %q: %+v", cmd, id, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (web *WebMon) status(ws *websocket.Conn) {
	defer ws.Close()

	tick := time.NewTicker(1 * time.Second)
	defer tick.Stop()

	for {
		select {
		case <-web.quit:
			return
		case <-tick.C:
			var data struct {
				Sessions []struct {
					ID       string `json:"id"`
					Name     string `json:"name"`
					State    string `json:"state"`
					Captured uint64 `json:"captured"`
					Rejected uint64 `json:"rejected"`
				} `json:"sessions"`
				Timestamp string `json:"timestamp"`
			}
			data.Timestamp = time.Now().UTC().Format("2006-01-02 15:04:05") + " (UTC)"
			for _, s := range web.eng.Sessions() {
				data.Sessions = append(data.Sessions, struct {
					ID       string `json:"id"`
					Name     string `json:"name"`
					State    string `json:"state"`
					Captured uint64 `json:"captured"`
					Rejected uint64 `json:"rejected"`
				}{s.ID(), s.Name(), s.State().String(), s.Captured(), s.Rejected()})
			}
			err := websocket.JSON.Send(ws, data)
			if err != nil {
				web.msg.Errorf("could not send /status report to websocket client: %+v", err)
				var nerr net.Error
				if errors.As(err, &nerr); nerr != nil && nerr.Timeout() {
					return
				}
			}
		}
	}
}

// data streams batches of the session named by the id query parameter.
func (web *WebMon) data(ws *websocket.Conn) {
	defer ws.Close()

	id := ws.Request().URL.Query().Get("id")
	pub, err := web.eng.NewPublisher(id)
	if err != nil {
		web.msg.Errorf("could not stream session %q: %+v", id, err)
		return
	}
	defer pub.Close()

	obs := NewChanObserver(8)
	_, err = pub.Subscribe(SubConfig{}, obs)
	if err != nil {
		web.msg.Errorf("could not subscribe to session %q: %+v", id, err)
		return
	}

	for {
		select {
		case <-web.quit:
			return
		case batch := <-obs.C:
			err := websocket.JSON.Send(ws, batch)
			if err != nil {
				web.msg.Errorf("could not send /data batch to websocket client: %+v", err)
				var nerr net.Error
				if errors.As(err, &nerr); nerr != nil && nerr.Timeout() {
					return
				}
			}
		}
	}
}

const webHomePage = `<html>
<head>
    <title>ACQ Monitor</title>

	<meta name="viewport" content="width=device-width, initial-scale=1">
	<link rel="stylesheet" href="https://www.w3schools.com/w3css/3/w3.css">
	<script src="https://ajax.googleapis.com/ajax/libs/jquery/3.1.1/jquery.min.js"></script>

	<style>
	input[type=submit] {
		background-color: #F44336;
		padding:5px 15px;
		border:0 none;
		cursor:pointer;
		-webkit-border-radius: 5px;
		border-radius: 5px;
	}
	.msg-log {
		color: black;
		text-align: left;
		font-family: monospace;
	}
	</style>

<script type="text/javascript">
	"use strict"

	var statusChan = null;

	window.onload = function() {
		statusChan = new WebSocket("ws://"+location.host+"/status");

		statusChan.onmessage = function(event) {
			var data = JSON.parse(event.data);
			updateStatus(data);
		};
	};

	function updateStatus(data) {
		document.getElementById("acq-status-update").innerHTML = data.timestamp;

		var sessions = document.getElementById("acq-sessions");
		sessions.innerHTML = "";
		if (data.sessions != null) {
			data.sessions.forEach(function(value) {
				var node = document.createElement("tr");
				node.innerHTML = "<th class=\"msg-log\">" + value.name + ":</th>" +
					"<th class=\"msg-log\">" + value.state + "</th>" +
					"<th class=\"msg-log\">" + value.captured + "</th>";
				sessions.appendChild(node);
			});
		}
	};

	function cmdStart()  { sendCmd("/start"); };
	function cmdStop()   { sendCmd("/stop"); };
	function cmdPause()  { sendCmd("/pause"); };
	function cmdResume() { sendCmd("/resume"); };
	function cmdReset()  { sendCmd("/reset"); };

	function sendCmd(name) {
		var data = new FormData();
		data.append("cmd", name);
		data.append("id", document.getElementById("acq-session-id").value);
		$.ajax({
			url: "/cmd",
			method: "POST",
			data: data,
			processData: false,
			contentType: false,
			error: function(e) {
				alert("could not send command ["+name+"]:\n"+e.responseText);
			}
		});
	};

</script>
</head>
<body>

<!-- Sidebar -->
<div id="app-sidebar" class="w3-sidebar w3-bar-block w3-card-4 w3-light-grey" style="width:25%">
	<div class="w3-bar-item w3-card-2 w3-black">
		<h2>ACQ Monitor</h2>
	</div>
	<div class="w3-bar-item">

		<input type="text" id="acq-session-id" placeholder="session id">
		<br>
		<br>

		<input type="button" onclick="cmdStart()"  value="Start">
		<input type="button" onclick="cmdStop()"   value="Stop">
		<input type="button" onclick="cmdPause()"  value="Pause">
		<input type="button" onclick="cmdResume()" value="Resume">
		<input type="button" onclick="cmdReset()"  value="Reset">

		<br>
		<br>

		<div>
			<h4>Sessions:</h4>
			<table>
				<tbody id="acq-sessions">
				</tbody>
			</table>
		</div>
		<br>

		<span>---</span>
		Last status update:<br><span id="acq-status-update" class="msg-log">N/A</span><br>
		<br>
	</div>
</div>

<!-- Page Content -->
<div style="margin-left:25%; height:100%" class="w3-grey" id="app-container">
	<div class="w3-container w3-content w3-cell w3-cell-middle w3-cell-row w3-center w3-justify w3-grey" style="width:100%" id="app-display">
		<div>
			<pre id="acq-data-log" class="msg-log"></pre>
		</div>
	</div>
</div>

</body>
</html>
`
