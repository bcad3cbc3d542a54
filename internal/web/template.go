package web

import "html/template"

var templates = template.Must(template.New("").Parse(`
{{define "index"}}<!doctype html>
<html>
	<head>
		<title>Virtual Factory Platform</title>
		<style>
			body {
				font-family: Arial, sans-serif;
				background-color: #f4f4f9;
				display: flex;
				justify-content: center;
				align-items: center;
				height: 100vh;
				margin: 0;
			}
			.container {
				background-color: #fff;
				padding: 20px;
				border-radius: 8px;
				box-shadow: 0 0 10px rgba(0, 0, 0, 0.1);
				text-align: center;
				width: 800px;
				text-align: justify;
			}
			h1 {
				text-align: center;
			}
			input[type="text"] {
				width: 90%;
				padding: 10px;
				margin: 10px 0;
				border: 1px solid #ccc;
				border-radius: 4px;
			}
			button {
				width: 100px;
				padding: 10px;
				background-color: #007bff;
				color: white;
				border: none;
				border-radius: 4px;
				cursor: pointer;
				display: block;
				margin: 10px auto;
			}
			button:hover {
				background-color: #0056b3;
			}
			#answer {
				margin-top: 20px;
				font-size: 1.2em;
				color: #333;
				background-color: #f9f9f9;
				padding: 10px;
				border-radius: 4px;
				max-height: 200px;
				overflow-y: scroll;
				white-space: pre-wrap;
			}
			#loading {
				display: none;
				margin-top: 20px;
				font-size: 1.2em;
				color: #333;
			}
		</style>
	</head>
	<body>
		<div class="container">
			<h1>Virtual Factory Platform</h1>
			<form action="/" method="post" onsubmit="showLoading()">
				<input type="text" name="user_input" value="{{.Question}}" placeholder="Ask a question..." required>
				<br>
				<button type="submit">Submit</button>
			</form>

			<p id="loading">Loading...</p>

			<script>
				function showLoading() {
					document.getElementById("loading").style.display = "block";
					var answerText = document.querySelector("#answer");
					answerText.innerText = "";
				}
			</script>

			{{if .Loaded}}
			<p id="answer">{{.Answer}}</p>
			{{end}}
		</div>
	</body>
</html>
{{end}}
`))
