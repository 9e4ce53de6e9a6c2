package http

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>FileChat</title>
    <style>
        body { font-family: system-ui, sans-serif; background: #f5f5f7; margin: 0; }
        .container { max-width: 860px; margin: 0 auto; padding: 24px; }
        header h1 { margin: 0 0 4px; }
        .subtitle { color: #666; margin: 0 0 16px; }
        form { display: flex; gap: 8px; flex-wrap: wrap; margin-bottom: 12px; }
        input[type=password], input[type=text] { flex: 1; padding: 8px; border: 1px solid #ccc; border-radius: 6px; }
        button { padding: 8px 14px; border: 0; border-radius: 6px; background: #2f6fed; color: #fff; cursor: pointer; }
        button:disabled { background: #9ab; cursor: default; }
        #chat-container { height: 420px; overflow-y: auto; background: #fff; border-radius: 8px; padding: 12px; margin-bottom: 12px; }
        .message { padding: 8px 12px; border-radius: 8px; margin: 6px 0; white-space: pre-wrap; }
        .user { background: #e7efff; text-align: right; }
        .assistant { background: #f0f0f0; }
        .progress { color: #888; font-size: 0.9em; }
        #status { min-height: 1.4em; color: #555; }
        .error { color: #b00020; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>FileChat</h1>
            <p class="subtitle">Upload PDFs, then ask questions about them</p>
        </header>

        <form id="session-form" onsubmit="startSession(event)">
            <input type="password" name="api_key" placeholder="OpenAI API key" autocomplete="off" required>
            <input type="file" name="files" accept=".pdf,application/pdf" multiple>
            <button type="submit" id="upload-btn">Upload</button>
            <button type="button" onclick="endSession()">End session</button>
        </form>
        <div id="status">Select one or more PDF files to start.</div>

        <main>
            <div id="chat-container">
                <div id="messages"></div>
            </div>

            <form id="query-form" onsubmit="sendQuery(event)">
                <input type="text" id="query-input" placeholder="Ask about your documents..." autocomplete="off" disabled required>
                <button type="submit" id="send-btn" disabled>Send</button>
            </form>
        </main>
    </div>

    <script>
        const statusEl = document.getElementById('status');
        const messages = document.getElementById('messages');
        const container = document.getElementById('chat-container');

        function setStatus(text, isError) {
            statusEl.textContent = text;
            statusEl.className = isError ? 'error' : '';
        }

        function setChatEnabled(on) {
            document.getElementById('query-input').disabled = !on;
            document.getElementById('send-btn').disabled = !on;
        }

        function addMessage(role, text) {
            const el = document.createElement('div');
            el.className = 'message ' + role;
            el.textContent = text;
            messages.appendChild(el);
            container.scrollTop = container.scrollHeight;
            return el;
        }

        async function startSession(e) {
            e.preventDefault();
            const form = e.target;
            const btn = document.getElementById('upload-btn');
            btn.disabled = true;
            setChatEnabled(false);
            setStatus('Uploading and indexing documents...');
            try {
                const resp = await fetch('/api/session', { method: 'POST', body: new FormData(form) });
                const data = await resp.json();
                if (!resp.ok) {
                    setStatus(data.error || 'Upload failed', true);
                    return;
                }
                messages.innerHTML = '';
                const names = (data.files || []).map(f => f.name).join(', ');
                setStatus('Ready: ' + names);
                setChatEnabled(true);
            } catch (err) {
                setStatus('Connection error', true);
            } finally {
                btn.disabled = false;
            }
        }

        async function endSession() {
            await fetch('/api/session', { method: 'DELETE' });
            messages.innerHTML = '';
            setChatEnabled(false);
            setStatus('Session closed. Select PDF files to start again.');
        }

        function sendQuery(e) {
            e.preventDefault();
            const input = document.getElementById('query-input');
            const query = input.value.trim();
            if (!query) return;
            input.value = '';
            setChatEnabled(false);

            addMessage('user', query);
            const progress = addMessage('assistant progress', 'Thinking...');
            let failed = false;

            const source = new EventSource('/api/chat/stream?q=' + encodeURIComponent(query));
            source.onmessage = function(event) {
                const data = JSON.parse(event.data);
                if (data.stage === 'completed' && data.reply) {
                    progress.className = 'message assistant';
                    progress.textContent = data.reply.content;
                } else if (data.stage === 'failed') {
                    failed = true;
                    progress.className = 'message assistant error';
                    progress.textContent = (data.error && data.error.error) || 'Request failed';
                } else if (data.status) {
                    progress.textContent = 'Thinking... (' + data.status + ')';
                }
                container.scrollTop = container.scrollHeight;
            };
            source.addEventListener('done', function() {
                source.close();
                setChatEnabled(true);
                if (!failed) setStatus('');
            });
            source.onerror = function() {
                source.close();
                setChatEnabled(true);
                if (progress.classList.contains('progress')) {
                    progress.className = 'message assistant error';
                    progress.textContent = 'Connection error';
                }
            };
        }

        fetch('/api/messages').then(r => r.ok ? r.json() : null).then(data => {
            if (!data) return;
            (data.messages || []).forEach(m => addMessage(m.role, m.content));
            setChatEnabled(true);
            setStatus('Session restored.');
        });
    </script>
</body>
</html>`
