package mapping

import (
	"bedrock/internal/types"
	"errors"
	"sort"
	"strings"
)

const userXML = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE mapper PUBLIC "-//mybatis.org//DTD Mapper 3.0//EN" "http://mybatis.org/dtd/mybatis-3-mapper.dtd">
<mapper namespace="user">
    <resultMap id="userMap" type="User"><id property="id" column="id"/></resultMap>
    <sql id="columns">id, user_name, created_at</sql>
    <select id="findById" resultType="User">
        SELECT <include refid="columns"/>
        FROM users
        WHERE id = #{id}
    </select>
    <select id="countOlder"><![CDATA[ SELECT count(*) FROM users WHERE age > #{age, jdbcType=INTEGER} ]]></select>
    <insert id="insert">
        INSERT INTO users (id, user_name) VALUES (#{id}, #{name})
    </insert>
    <update id="rename">UPDATE users SET user_name = #{name} WHERE id = #{id}</update>
    <delete id="deleteAll">DELETE FROM users</delete>
</mapper>`

const orderYAML = `
namespace: order
fragments:
  cols: "id, total"
  where_user: "WHERE user_id = #{userId}"
statements:
  - id: listByUser
    sql: "SELECT ${cols} FROM orders ${where_user}"
  - id: insert
    kind: insert
    sql: "INSERT INTO orders (id, user_id, total) VALUES (#{id}, #{userId}, #{total})"
  - id: userColumns
    sql: "SELECT ${user.columns} FROM users"
`

func (s *UnitTestSuite) load(resources map[string]string) (*Mappings, error) {
	cfg := NewConfiguration()
	for _, p := range sortedPaths(resources) {
		if err := cfg.Parse(p, strings.NewReader(resources[p])); err != nil {
			return nil, err
		}
	}
	return cfg.Freeze()
}

func sortedPaths(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *UnitTestSuite) TestParseXMLMapper() {
	m, err := s.load(map[string]string{"mappers/user.xml": userXML})
	s.Require().NoError(err)

	st, ok := m.Statement("user.findById")
	s.Require().True(ok)
	s.Equal(KindSelect, st.Kind)
	s.Equal("SELECT id, user_name, created_at FROM users WHERE id = @id", st.SQL)
	s.Equal([]string{"id"}, st.Params)
	s.Equal("mappers/user.xml", st.Resource)

	st, ok = m.Statement("countOlder")
	s.Require().True(ok)
	s.Equal("SELECT count(*) FROM users WHERE age > @age", st.SQL)

	st, ok = m.Statement("user.insert")
	s.Require().True(ok)
	s.Equal(KindInsert, st.Kind)
	s.Equal([]string{"id", "name"}, st.Params)

	s.Equal([]string{"user"}, m.Namespaces())
	s.Equal(5, m.Len())
}

func (s *UnitTestSuite) TestParseYAMLMapperWithCrossNamespaceFragment() {
	m, err := s.load(map[string]string{
		"mappers/order.yaml": orderYAML,
		"mappers/user.xml":   userXML,
	})
	s.Require().NoError(err)

	st, ok := m.Statement("order.listByUser")
	s.Require().True(ok)
	s.Equal(KindSelect, st.Kind)
	s.Equal("SELECT id, total FROM orders WHERE user_id = @userId", st.SQL)

	st, ok = m.Statement("order.userColumns")
	s.Require().True(ok)
	s.Equal("SELECT id, user_name, created_at FROM users", st.SQL)

	s.Equal([]string{"order", "user"}, m.Namespaces())
	s.Equal([]string{"mappers/order.yaml", "mappers/user.xml"}, m.Resources())
}

func (s *UnitTestSuite) TestAmbiguousShortNameNeedsNamespace() {
	m, err := s.load(map[string]string{
		"mappers/order.yaml": orderYAML,
		"mappers/user.xml":   userXML,
	})
	s.Require().NoError(err)

	_, ok := m.Statement("insert")
	s.False(ok)
	_, ok = m.Statement("order.insert")
	s.True(ok)
	_, ok = m.Statement("order.missing")
	s.False(ok)
}

func (s *UnitTestSuite) TestParseFailuresNameTheResource() {
	cases := []struct {
		name    string
		content string
		msg     string
	}{
		{"not xml", "<mapper namespace=\"x\"><select id=\"a\">SELECT 1", "unexpected EOF"},
		{"missing namespace", "<mapper><select id=\"a\">SELECT 1</select></mapper>", "namespace"},
		{"wrong root", "<configuration/>", "root element"},
		{"dynamic sql", "<mapper namespace=\"x\"><select id=\"a\">SELECT 1 <if test=\"b\">AND 1</if></select></mapper>", "dynamic element <if>"},
		{"duplicate id", "<mapper namespace=\"x\"><select id=\"a\">SELECT 1</select><select id=\"a\">SELECT 2</select></mapper>", "duplicate"},
		{"missing id", "<mapper namespace=\"x\"><select>SELECT 1</select></mapper>", "without id"},
		{"unknown element", "<mapper namespace=\"x\"><procedure id=\"a\"/></mapper>", "unsupported element"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			cfg := NewConfiguration()
			err := cfg.Parse("mappers/bad.xml", strings.NewReader(tc.content))
			var mpe *types.MappingParseError
			s.Require().True(errors.As(err, &mpe), "got %v", err)
			s.Equal("mappers/bad.xml", mpe.Path)
			s.Contains(err.Error(), tc.msg)
		})
	}
}

func (s *UnitTestSuite) TestYAMLUnknownFieldFails() {
	cfg := NewConfiguration()
	err := cfg.Parse("m/x.yml", strings.NewReader("namespace: x\nstatments: []\n"))
	s.ErrorIs(err, types.ErrMappingParse)
}

func (s *UnitTestSuite) TestDuplicateAcrossResourcesFails() {
	cfg := NewConfiguration()
	s.Require().NoError(cfg.Parse("a.xml", strings.NewReader(userXML)))
	err := cfg.Parse("b.xml", strings.NewReader(userXML))
	var mpe *types.MappingParseError
	s.Require().True(errors.As(err, &mpe))
	s.Equal("b.xml", mpe.Path)

	m, err := cfg.Freeze()
	s.Require().NoError(err)
	s.Equal([]string{"a.xml"}, m.Resources())
}

func (s *UnitTestSuite) TestUnresolvedIncludeFailsAtFreeze() {
	cfg := NewConfiguration()
	s.Require().NoError(cfg.Parse("m/x.xml", strings.NewReader(
		`<mapper namespace="x"><select id="a">SELECT <include refid="nope"/> FROM t</select></mapper>`)))
	_, err := cfg.Freeze()
	var mpe *types.MappingParseError
	s.Require().True(errors.As(err, &mpe))
	s.Equal("m/x.xml", mpe.Path)
	s.Contains(err.Error(), "unresolved sql fragment [nope]")
}

func (s *UnitTestSuite) TestCircularFragmentsFail() {
	cfg := NewConfiguration()
	s.Require().NoError(cfg.Parse("m/x.yaml", strings.NewReader(`
namespace: x
fragments:
  a: ${b}
  b: ${a}
statements:
  - id: q
    sql: SELECT ${a}
`)))
	_, err := cfg.Freeze()
	s.ErrorIs(err, types.ErrMappingParse)
	s.Contains(err.Error(), "circular")
}

func (s *UnitTestSuite) TestFrozenConfigurationRejectsResources() {
	cfg := NewConfiguration()
	_, err := cfg.Freeze()
	s.Require().NoError(err)
	s.ErrorIs(cfg.Parse("late.xml", strings.NewReader(userXML)), types.ErrMappingParse)
}

func (s *UnitTestSuite) TestFormatSniffing() {
	s.True(isXML("mapping", []byte("\n  <mapper namespace=\"x\"/>")))
	s.False(isXML("mapping", []byte("namespace: x")))
	s.True(isXML("a.XML", nil))
}
