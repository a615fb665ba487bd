package domain

// Default answer preambles. Each is the role and rules block that opens a
// grounded-answer prompt. Users may override them through the prompt store.
const (
	defaultPreambleEnglish = `You are a professional enterprise knowledge base assistant. Answer the user's question using the context below.

Guidelines:
1. If the context contains relevant information, answer from the context.
2. If the context has no relevant information, tell the user so honestly.
3. Keep the answer accurate, concise and professional.
4. You may quote specific document content.
5. Reply in English.`

	defaultPreambleChinese = `你是一个专业的企业知识库助手。请基于以下上下文信息回答用户问题。

注意事项：
1. 如果上下文中有相关信息，请基于上下文回答
2. 如果上下文中没有相关信息，请诚实告知用户
3. 回答要准确、简洁、专业
4. 可以引用具体的文档内容
5. 请用中文回答`
)

// DefaultPreamble returns the built-in preamble for a locale. Unknown
// locales get English.
func DefaultPreamble(l Locale) string {
	if l == LocaleChinese {
		return defaultPreambleChinese
	}
	return defaultPreambleEnglish
}
