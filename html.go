package main

import "net/http"

var page = `
<html>
	<script>
		window.setInterval(function(){
			let t = new Date().getTime()
			document.getElementById('luma').src = "/debug/luma?random=" + t;
			document.getElementById('mask').src = "/debug/mask?random=" + t;
		}, 500);
		function post(path) {
			fetch(path, {method: "POST"}).then(r => r.json()).then(s => {
				document.getElementById('state').textContent = JSON.stringify(s);
			});
		}
		let events = new WebSocket("ws://" + location.host + "/events");
		events.onmessage = function(m) {
			let li = document.createElement("li");
			let e = JSON.parse(m.data);
			li.textContent = "[" + e.timestamp + "] pixels: " + e.pixels + " sens: " + e.sensitivity;
			let log = document.getElementById('log');
			log.appendChild(li);
			while (log.children.length > 50) { log.removeChild(log.firstChild); }
		};
	</script>
	<body>
		<div>
			<img id="stream" display="flex" src="/stream"  style="max-width: 32%; height: auto; "/>
			<img id="luma" display="flex" src="/debug/luma" style="max-width: 32%; height: auto; "/>
			<img id="mask" display="flex" src="/debug/mask" style="max-width: 32%; height: auto; "/>
		</div>
		<div>
			<button onclick="post('/tracking?on=true')">Start tracking</button>
			<button onclick="post('/tracking?on=false')">Stop tracking</button>
			<input type="range" min="10" max="100" onchange="post('/sensitivity?value=' + this.value)"/>
			<a href="/debug/history">history</a> <a href="/debug/status">status</a>
			<span id="state"></span>
		</div>
		<ul id="log"></ul>
	</body>
</html>
`

func indexHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	})
}
