package mcpserver

// ContractURI identifies the note format resource.
const ContractURI = "quill://note-format"

// NoteFormatContract describes how quill notes are named, stored and
// linked, for LLM clients creating or editing notes.
const NoteFormatContract = `# Quill Note Format

Every note has a unique **title** and a Markdown **body**. Quill owns the file
on disk; tools take a title and a body, never a path or raw file content.

## Titles

1. Titles are unique ignoring case: ` + "`Project Ideas`" + ` and ` + "`project ideas`" + ` are the same note.
2. A title cannot be blank, span more than one line, or contain ` + "`[`" + ` or ` + "`]`" + `.
3. The file name is derived from the title (lower-cased, spaces become ` + "`_`" + `),
   so two titles that map to the same file name cannot coexist.

## Links

- Link to another note with double brackets around its title: ` + "`[[Project Ideas]]`" + `.
- Matching ignores case and surrounding spaces: ` + "`[[ project ideas ]]`" + ` works.
- There is no alias syntax; ` + "`[[a|b]]`" + ` targets a note literally titled "a|b".
- A link to a title that does not exist yet is fine. It resolves as soon as
  that note is created.
- Renaming or deleting a note does not rewrite links that point at it.

## Body

- Standard Markdown, UTF-8.
- Do not add YAML front matter yourself. Quill writes ` + "`title`" + ` and ` + "`created`" + `
  on create and keeps any other front matter keys on update.

## Example

` + "```" + `markdown
# Weekly standup

Attendees: Alice, Bob.

- Alice to review the [[Design Doc]]
- Bob to update [[roadmap]]
` + "```" + `
`
