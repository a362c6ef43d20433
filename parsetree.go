package main

import (
	"strconv"
	"strings"
)

// TreeNode is a node of the parse tree. Interior nodes carry a production
// label; leaves carry the token they matched. The tree is a debugging
// artifact and code generation never reads it.
type TreeNode struct {
	Label    string
	Token    *Token
	Children []*TreeNode
}

func newNode(label string, children ...*TreeNode) *TreeNode {
	n := &TreeNode{Label: label}
	n.Add(children...)
	return n
}

func leaf(tok Token) *TreeNode {
	return &TreeNode{Token: &tok}
}

// Add appends non-nil children.
func (n *TreeNode) Add(children ...*TreeNode) {
	for _, c := range children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
}

// ToSExpr converts a parse tree to its s-expression form. Identifiers and
// symbols become strings, numbers become integers and productions become
// lists headed by their label.
func ToSExpr(node *TreeNode) string {
	if node == nil {
		return "()"
	}
	if node.Token != nil {
		switch node.Token.Kind {
		case NUM:
			if node.Token.Real {
				return strconv.Quote(node.Token.Lexeme)
			}
			return node.Token.Lexeme
		default:
			return strconv.Quote(node.Token.Lexeme)
		}
	}
	result := "(" + node.Label
	for _, child := range node.Children {
		result += " " + ToSExpr(child)
	}
	return result + ")"
}

// RenderTree draws the tree one node per line with box-drawing guides.
func RenderTree(root *TreeNode) string {
	var b strings.Builder
	renderNode(&b, root, "", "")
	return b.String()
}

func renderNode(b *strings.Builder, n *TreeNode, first, rest string) {
	b.WriteString(first)
	if n.Token != nil {
		b.WriteString(n.Token.String())
	} else {
		b.WriteString(n.Label)
	}
	b.WriteString("\n")
	for i, c := range n.Children {
		if i == len(n.Children)-1 {
			renderNode(b, c, rest+"└── ", rest+"    ")
		} else {
			renderNode(b, c, rest+"├── ", rest+"│   ")
		}
	}
}
