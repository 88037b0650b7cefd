// Package fixture serves a stand-in landing page for running page_verify
// without the real frontend.
package fixture

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Heading is the headline the landing page renders.
const Heading = "Know they can pay. Instantly."

// LandingPageHTML is the page served at "/".
const LandingPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>Landing</title>
    <style>
        body { font-family: system-ui, sans-serif; margin: 0; background: #f7f8fa; color: #1a1a2e; }
        header { padding: 24px 40px; font-weight: 600; }
        .hero { padding: 80px 40px; max-width: 800px; }
        .hero h1 { font-size: 48px; margin: 0 0 16px; }
        .hero p { font-size: 20px; color: #555; }
        .cta { display: inline-block; margin-top: 24px; padding: 12px 24px; background: #4ecca3; color: #fff; border-radius: 6px; text-decoration: none; }
    </style>
</head>
<body>
    <header>Landing</header>
    <section class="hero">
        <h1>Know they can pay. Instantly.</h1>
        <p>Verify an applicant's ability to pay with a single bank connection.</p>
        <a class="cta" href="/signup">Get started</a>
    </section>
</body>
</html>`

// DelayedPageHTML renders the heading from script after a short delay, so
// the heading is absent at DOMContentLoaded.
const DelayedPageHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Landing (delayed)</title></head>
<body>
    <div id="root"></div>
    <script>
        setTimeout(() => {
            const h = document.createElement('h1');
            h.textContent = 'Know they can pay. Instantly.';
            document.getElementById('root').appendChild(h);
        }, 300);
    </script>
</body>
</html>`

// HiddenPageHTML has the heading in the DOM but not rendered.
const HiddenPageHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Landing (hidden)</title></head>
<body>
    <h1 style="display:none">Know they can pay. Instantly.</h1>
    <h2>Something else</h2>
</body>
</html>`

// DuplicatePageHTML renders the heading twice, which makes the heading
// locator ambiguous.
const DuplicatePageHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Landing (duplicate)</title></head>
<body>
    <h1>Know they can pay. Instantly.</h1>
    <section>
        <h2>Know they can pay. Instantly. With one connection.</h2>
    </section>
</body>
</html>`

// Handler serves the landing page at "/" and its variants at "/delayed",
// "/hidden" and "/duplicate". HEAD is answered for every GET route.
func Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)

	r.Get("/", servePage(LandingPageHTML))
	r.Get("/delayed", servePage(DelayedPageHTML))
	r.Get("/hidden", servePage(HiddenPageHTML))
	r.Get("/duplicate", servePage(DuplicatePageHTML))
	return r
}

func servePage(html string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write([]byte(html))
	}
}
