package sandbox

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// DOM is a lightweight element tree built from the loaded page. Scripts
// reach it through document.getElementById and friends.
type DOM struct {
	root *Element
	mu   sync.RWMutex
}

// Element represents a DOM element
type Element struct {
	TagName     string
	ID          string
	ClassName   string
	TextContent string
	Attributes  map[string]string
	Children    []*Element
	Parent      *Element
}

// NewDOM builds the element tree of doc.
func NewDOM(doc *goquery.Document) *DOM {
	root := &Element{TagName: "#document", Attributes: map[string]string{}}
	if doc != nil {
		doc.Selection.Children().Each(func(_ int, s *goquery.Selection) {
			root.AddElement(buildElement(s))
		})
	}
	return &DOM{root: root}
}

func buildElement(s *goquery.Selection) *Element {
	e := &Element{
		TagName:     strings.ToUpper(goquery.NodeName(s)),
		TextContent: s.Text(),
		Attributes:  map[string]string{},
	}
	if len(s.Nodes) > 0 {
		for _, a := range s.Nodes[0].Attr {
			e.Attributes[a.Key] = a.Val
		}
	}
	e.ID = e.Attributes["id"]
	e.ClassName = e.Attributes["class"]
	s.Children().Each(func(_ int, c *goquery.Selection) {
		e.AddElement(buildElement(c))
	})
	return e
}

// Query finds elements by a simple selector: #id, .class or tag.
func (d *DOM) Query(selector string) []*Element {
	d.mu.RLock()
	defer d.mu.RUnlock()

	selector = strings.TrimSpace(selector)
	switch {
	case strings.HasPrefix(selector, "#"):
		if elem := findByID(d.root, selector[1:]); elem != nil {
			return []*Element{elem}
		}
		return nil
	case strings.HasPrefix(selector, "."):
		return findByClass(d.root, selector[1:])
	case selector == "":
		return nil
	default:
		return findByTag(d.root, selector)
	}
}

// GetAttribute retrieves attribute value
func (e *Element) GetAttribute(name string) string {
	return e.Attributes[name]
}

// SetAttribute sets attribute value
func (e *Element) SetAttribute(name, value string) {
	e.Attributes[name] = value
	switch name {
	case "id":
		e.ID = value
	case "class":
		e.ClassName = value
	}
}

// AddElement adds a child element
func (e *Element) AddElement(child *Element) {
	child.Parent = e
	e.Children = append(e.Children, child)
}

func findByID(elem *Element, id string) *Element {
	if elem.ID == id {
		return elem
	}
	for _, child := range elem.Children {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

func findByClass(elem *Element, class string) []*Element {
	var result []*Element
	for _, c := range strings.Fields(elem.ClassName) {
		if c == class {
			result = append(result, elem)
			break
		}
	}
	for _, child := range elem.Children {
		result = append(result, findByClass(child, class)...)
	}
	return result
}

func findByTag(elem *Element, tag string) []*Element {
	var result []*Element
	if strings.EqualFold(elem.TagName, tag) {
		result = append(result, elem)
	}
	for _, child := range elem.Children {
		result = append(result, findByTag(child, tag)...)
	}
	return result
}
