package web

// controlPage is the single-page control surface. It talks to the
// plain-text API and subscribes to /ws for live position updates.
const controlPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>railctl</title>
<style>
body { font-family: monospace; background: #111; color: #ddd; max-width: 40em; margin: 2em auto; }
h1 { font-size: 1.2em; }
#pos { font-size: 2.5em; margin: 0.4em 0; }
button { background: #333; color: #ddd; border: 1px solid #555; padding: 0.5em 1em; margin: 0.2em; cursor: pointer; }
button:hover { background: #444; }
input { background: #222; color: #ddd; border: 1px solid #555; padding: 0.4em; width: 5em; }
.state { color: #888; }
</style>
</head>
<body>
<h1>railctl</h1>
<div id="pos">{{ status.position_mm }} mm</div>
<div class="state">
homing: {{ status.homing }} |
calibration: {{ status.calibration }} |
calibrated: {{ status.calibrated }} |
speed: {{ status.speed_percent }}% |
driver: {% if status.driver_on %}on{% else %}off{% endif %}
</div>
<p>
<input id="target" type="number" value="0"> mm
<input id="speed" type="number" value="{{ status.speed_percent }}" min="1" max="100"> %
<button onclick="move()">Move</button>
</p>
<p>
<button onclick="api('/api/home?n=1')">Home 1</button>
<button onclick="api('/api/home?n=2')">Home 2</button>
<button onclick="api('/api/home?n=3')">Home 3</button>
<button onclick="api('/api/homeall')">Home all</button>
<button onclick="api('/api/stop')">Stop</button>
</p>
<script>
function api(path) { fetch(path); }
function move() {
  var pos = document.getElementById('target').value;
  var spd = document.getElementById('speed').value;
  fetch('/api/move?pos=' + pos + '&spd=' + spd);
}
var ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
ws.onmessage = function (ev) {
  var msg = JSON.parse(ev.data);
  if (msg.event === 'position') {
    document.getElementById('pos').textContent = msg.position_mm + ' mm';
  }
};
</script>
</body>
</html>
`
