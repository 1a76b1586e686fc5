package rod

const (
	basicHTML = `<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body>
	<h1>Hello World</h1>
</body>
</html>`

	formHTML = `<!DOCTYPE html>
<html>
<head><title>Form</title></head>
<body>
	<form id="testForm" onsubmit="return false">
		<input id="username" type="text" name="username" value="preset" />
		<input id="secret" type="hidden" name="secret" value="x" />
		<button id="btn" type="button">Click Me</button>
	</form>
	<div id="result"></div>
	<script>
		document.getElementById('btn').addEventListener('click', function() {
			document.getElementById('result').textContent = 'Clicked!';
		});
	</script>
</body>
</html>`
)
