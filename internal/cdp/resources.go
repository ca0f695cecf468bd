package cdp

import (
	"context"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
)

type scriptRef struct {
	frameID cdp.FrameID
	url     string
}

// isScript matches resources the devtools panel treats as scripts.
func isScript(res *page.FrameResource) bool {
	return res.Type == network.ResourceTypeScript || strings.HasSuffix(res.URL, ".js")
}

// collectScripts walks the frame tree depth-first and returns script
// resources in document order.
func collectScripts(tree *page.FrameResourceTree) []scriptRef {
	var refs []scriptRef
	var walk func(*page.FrameResourceTree)
	walk = func(node *page.FrameResourceTree) {
		if node == nil || node.Frame == nil {
			return
		}
		for _, res := range node.Resources {
			if res != nil && isScript(res) {
				refs = append(refs, scriptRef{frameID: node.Frame.ID, url: res.URL})
			}
		}
		for _, child := range node.ChildFrames {
			walk(child)
		}
	}
	walk(tree)
	return refs
}

type resourceReader interface {
	readResource(ctx context.Context, frameID cdp.FrameID, url string) (string, error)
}

// scriptSource reads its content lazily through the attached tab.
type scriptSource struct {
	client  resourceReader
	frameID cdp.FrameID
	url     string
}

func (s *scriptSource) URL() string { return s.url }

func (s *scriptSource) Content(ctx context.Context) (string, error) {
	return s.client.readResource(ctx, s.frameID, s.url)
}
