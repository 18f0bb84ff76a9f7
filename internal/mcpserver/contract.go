package mcpserver

// DocumentFormatContract describes the Markdown accepted by create_document.
const DocumentFormatContract = `# Folio Document Format Contract

Documents are stored as blocks, one per line. Markdown is only an import
format: it is converted once when the document is created.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # OPTIONAL, defaults to the first H1 or the id
tags:                               # OPTIONAL, YAML list of tag pages to join
  - project-x
---

# Section title

Body text with **bold**, *italic*, _italic_ and ~~strikethrough~~.
Tag a phrase with [[tag|the phrase]] to copy it into the "tag" document.
` + "```" + `

## Rules

1. **One line is one block.** Blank lines become empty blocks.
2. **Headings** (` + "`" + `#` + "`" + ` to ` + "`" + `######` + "`" + `) become section blocks. The level is not kept.
3. **Links** use ` + "`" + `[[tag|text]]` + "`" + `. The text stays in the document and a copy
   of it is kept in sync inside the document whose id is ` + "`" + `tag` + "`" + `.
   ` + "`" + `[[tag]]` + "`" + ` alone links the word "tag" itself.
4. **Tags** (` + "`" + `#project-x` + "`" + `) and frontmatter tags register the document
   with a tag page without copying any text.
5. **Ids** are paths such as ` + "`" + `topics/plan` + "`" + `: letters, digits, spaces and
   ` + "`" + `_ . , ' ( ) -` + "`" + `, with no segment starting with a dot.
6. **Images** cannot be written in Markdown. Attach them after creation with the
   ` + "`" + `attach_image` + "`" + ` tool.

## Example

` + "```" + `markdown
# Weekly standup

Alice will review the [[design-doc|new storage layout]] by Friday. #meetings

# Action items

Bob to update the [[roadmap|Q3 milestones]].
` + "```" + `
`
